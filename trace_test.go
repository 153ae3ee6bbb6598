package patcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTraceWrappersReportsResolutionOrder(t *testing.T) {
	opts := NewOptions()
	_ = AddWrapperWithKey(opts, CalcCondBatch, "ext-b", passThrough)
	_ = AddWrapper(opts, CalcCondBatch, passThrough)
	_ = AddWrapperWithKey(opts, CalcCondBatch, "ext-b", passThrough)

	trace := TraceWrappers(opts, CalcCondBatch)
	want := Trace{
		Kind: KindWrapper,
		Hook: "calc_cond_batch",
		Entries: []TraceEntry{
			{Position: 0, SubKey: Unkeyed, Index: 0},
			{Position: 1, SubKey: "ext-b", Index: 0},
			{Position: 2, SubKey: "ext-b", Index: 1},
		},
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("unexpected trace (-want +got):\n%s", diff)
	}
	if trace.Len() != len(AllWrappers(opts, CalcCondBatch)) {
		t.Fatalf("trace and resolution disagree")
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	opts := NewOptions()
	_ = AddCallbackWithKey(opts, OnLoad, "ext", (&recorder{}).callback("x"))

	payload, err := TraceCallbacks(opts, OnLoad).ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	want := `{"kind":"callback","hook":"on_load_after","entries":[{"position":0,"sub_key":"ext","index":0}]}`
	if string(payload) != want {
		t.Fatalf("unexpected payload: %s", payload)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded.Hook != "on_load_after" || decoded.Len() != 1 {
		t.Fatalf("unexpected decoded trace: %+v", decoded)
	}
}

func TestTraceEmptyHook(t *testing.T) {
	trace := TraceCallbacks(nil, OnClone)
	if trace.Len() != 0 || trace.Entries == nil {
		t.Fatalf("expected empty non-nil entries, got %#v", trace.Entries)
	}
}
