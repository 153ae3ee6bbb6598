package patcher

import (
	"encoding/json"

	"github.com/goliatone/go-patcher/bag"
)

// Trace records where each resolved callable of a hook was registered.
type Trace struct {
	Kind    string       `json:"kind"`
	Hook    string       `json:"hook"`
	Entries []TraceEntry `json:"entries"`
}

// TraceEntry locates one resolved callable. Position is its place in the
// flattened list, Index its place within the sub-key list.
type TraceEntry struct {
	Position int    `json:"position"`
	SubKey   string `json:"sub_key"`
	Index    int    `json:"index"`
}

// TraceCallbacks describes the resolution of hook's callbacks.
func TraceCallbacks(opts *bag.Bag, hook CallbackHook) Trace {
	return traceRegistry(opts, KeyCallbacks, KindCallback, hook.String(), func(v any) bool {
		_, ok := v.(Callback)
		return ok
	})
}

// TraceWrappers describes the resolution of hook's wrappers, outermost first.
func TraceWrappers(opts *bag.Bag, hook WrapperHook) Trace {
	return traceRegistry(opts, KeyWrappers, KindWrapper, hook.String(), func(v any) bool {
		_, ok := v.(Wrapper)
		return ok
	})
}

func traceRegistry(opts *bag.Bag, registryKey, kind, name string, accept func(any) bool) Trace {
	trace := Trace{Kind: kind, Hook: name, Entries: []TraceEntry{}}
	walk(opts, registryKey, name, func(subKey string, index int, value any) {
		if !accept(value) {
			return
		}
		trace.Entries = append(trace.Entries, TraceEntry{
			Position: len(trace.Entries),
			SubKey:   subKey,
			Index:    index,
		})
	})
	return trace
}

// Len returns the number of resolved callables.
func (t Trace) Len() int {
	return len(t.Entries)
}

// ToJSON serialises the trace for logging or tooling.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
