package patcher

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func passThrough(ctx context.Context, next *Executor, args ...any) (any, error) {
	return next.Call(ctx, args...)
}

// tracer records the order in which chain nodes run.
type tracer struct {
	events []string
}

func (tr *tracer) wrapper(label string) Wrapper {
	return func(ctx context.Context, next *Executor, args ...any) (any, error) {
		tr.events = append(tr.events, label+":before")
		out, err := next.Call(ctx, args...)
		tr.events = append(tr.events, label+":after")
		return out, err
	}
}

func (tr *tracer) original(result any) Func {
	return func(_ context.Context, args ...any) (any, error) {
		tr.events = append(tr.events, "original")
		return result, nil
	}
}

func TestExecutorRunsWrappersOutermostFirst(t *testing.T) {
	tr := &tracer{}
	chain := NewExecutor(tr.original("R"), []Wrapper{tr.wrapper("W1"), tr.wrapper("W2")})

	out, err := chain.Execute(context.Background(), "x")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "R" {
		t.Fatalf("expected R, got %v", out)
	}
	want := []string{"W1:before", "W2:before", "original", "W2:after", "W1:after"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestExecutorEmptyChainCallsOriginal(t *testing.T) {
	var got []any
	original := func(_ context.Context, args ...any) (any, error) {
		got = args
		return len(args), nil
	}
	out, err := NewExecutor(original, nil).Execute(context.Background(), 1, "two")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != 2 {
		t.Fatalf("expected original result, got %v", out)
	}
	if diff := cmp.Diff([]any{1, "two"}, got); diff != "" {
		t.Fatalf("unexpected args (-want +got):\n%s", diff)
	}
}

func TestExecutorShortCircuit(t *testing.T) {
	tr := &tracer{}
	stop := func(context.Context, *Executor, ...any) (any, error) {
		tr.events = append(tr.events, "stop")
		return "S", nil
	}
	chain := NewExecutor(tr.original("R"), []Wrapper{stop, tr.wrapper("W2")})

	out, err := chain.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "S" {
		t.Fatalf("expected short-circuit result, got %v", out)
	}
	if diff := cmp.Diff([]string{"stop"}, tr.events); diff != "" {
		t.Fatalf("inner nodes must not run (-want +got):\n%s", diff)
	}
}

func TestExecutorProceedTwice(t *testing.T) {
	calls := 0
	original := func(_ context.Context, args ...any) (any, error) {
		calls++
		return args[0].(int) * 10, nil
	}
	twice := func(ctx context.Context, next *Executor, args ...any) (any, error) {
		first, err := next.Call(ctx, 1)
		if err != nil {
			return nil, err
		}
		second, err := next.Call(ctx, 2)
		if err != nil {
			return nil, err
		}
		return first.(int) + second.(int), nil
	}

	out, err := NewExecutor(original, []Wrapper{twice}).Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != 30 || calls != 2 {
		t.Fatalf("expected 30 from two calls, got %v after %d calls", out, calls)
	}
}

func TestExecutorRewritesArguments(t *testing.T) {
	double := func(ctx context.Context, next *Executor, args ...any) (any, error) {
		return next.Call(ctx, args[0].(int)*2)
	}
	original := func(_ context.Context, args ...any) (any, error) {
		return args[0], nil
	}
	out, err := ExecuteAs[int](context.Background(), NewExecutor(original, []Wrapper{double, double}), 3)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != 12 {
		t.Fatalf("expected 12, got %d", out)
	}
}

func TestExecutorChainsAreIndependent(t *testing.T) {
	tr := &tracer{}
	wrappers := []Wrapper{tr.wrapper("W1"), tr.wrapper("W2")}
	first := NewExecutor(tr.original(1), wrappers)
	second := NewExecutor(tr.original(1), wrappers)

	if _, err := first.Execute(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	firstEvents := tr.events
	tr.events = nil
	if _, err := second.Execute(context.Background()); err != nil {
		t.Fatalf("second: %v", err)
	}
	if diff := cmp.Diff(firstEvents, tr.events); diff != "" {
		t.Fatalf("identical chains diverged (-first +second):\n%s", diff)
	}

	tr.events = nil
	if _, err := first.Execute(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if diff := cmp.Diff(firstEvents, tr.events); diff != "" {
		t.Fatalf("executing a chain twice diverged (-want +got):\n%s", diff)
	}
}

func TestExecutorSnapshotsWrapperList(t *testing.T) {
	tr := &tracer{}
	wrappers := []Wrapper{tr.wrapper("W1")}
	chain := NewExecutor(tr.original(nil), wrappers)
	wrappers[0] = tr.wrapper("replaced")

	if _, err := chain.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tr.events[0] != "W1:before" {
		t.Fatalf("chain observed a mutation of the source list: %v", tr.events)
	}
}

func TestExecutorSkipsNilWrappers(t *testing.T) {
	tr := &tracer{}
	chain := NewExecutor(tr.original("R"), []Wrapper{nil, tr.wrapper("W1"), nil})
	if chain.Len() != 1 {
		t.Fatalf("expected nil wrappers to be dropped, len=%d", chain.Len())
	}
	if _, err := chain.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestExecutorArgumentsAreCopied(t *testing.T) {
	args := []any{"a", "b"}
	mutate := func(ctx context.Context, next *Executor, in ...any) (any, error) {
		in[0] = "changed"
		return next.Call(ctx, in...)
	}
	original := func(_ context.Context, in ...any) (any, error) {
		return in[0], nil
	}
	out, err := NewExecutor(original, []Wrapper{mutate}).Execute(context.Background(), args...)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "changed" {
		t.Fatalf("expected rewritten argument to reach original, got %v", out)
	}
	if args[0] != "a" {
		t.Fatalf("caller arguments were mutated: %v", args)
	}
}

func TestExecutorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	original := func(context.Context, ...any) (any, error) {
		return nil, boom
	}
	_, err := NewExecutor(original, []Wrapper{passThrough, passThrough}).Execute(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
}

func TestExecutorOverrun(t *testing.T) {
	var last *Executor
	capture := func(ctx context.Context, next *Executor, args ...any) (any, error) {
		last = next
		return next.Call(ctx, args...)
	}
	original := func(context.Context, ...any) (any, error) { return nil, nil }
	chain := NewExecutor(original, []Wrapper{capture})
	if _, err := chain.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if last.Index() != 0 || last.IsLast() {
		t.Fatalf("unexpected captured node: index=%d last=%v", last.Index(), last.IsLast())
	}

	terminal, err := last.next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !terminal.IsLast() {
		t.Fatalf("expected terminal node")
	}
	_, err = terminal.Call(context.Background())
	var overrun *ChainOverrunError
	if !errors.As(err, &overrun) {
		t.Fatalf("expected ChainOverrunError, got %v", err)
	}
	if overrun.Index != 2 || overrun.Len != 1 {
		t.Fatalf("unexpected overrun metadata: %+v", overrun)
	}
	if !errors.Is(err, ErrChainOverrun) {
		t.Fatalf("expected errors.Is to match ErrChainOverrun")
	}
}

func TestExecutorNilOriginal(t *testing.T) {
	_, err := NewExecutor(nil, []Wrapper{passThrough}).Execute(context.Background())
	if !errors.Is(err, ErrNilOriginal) {
		t.Fatalf("expected ErrNilOriginal, got %v", err)
	}
}

func TestExecutorOwner(t *testing.T) {
	owner := &struct{ name string }{name: "model"}
	var seen any
	w := func(ctx context.Context, next *Executor, args ...any) (any, error) {
		seen = next.Owner()
		return next.Call(ctx, args...)
	}
	original := func(context.Context, ...any) (any, error) { return nil, nil }
	if _, err := NewOwnedExecutor(original, owner, []Wrapper{w}).Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen != owner {
		t.Fatalf("expected owner to reach wrapper, got %v", seen)
	}
	if NewExecutor(original, nil).Owner() != nil {
		t.Fatalf("expected nil owner for free functions")
	}
}

func TestExecuteAsTypeMismatch(t *testing.T) {
	original := func(context.Context, ...any) (any, error) { return "text", nil }
	_, err := ExecuteAs[int](context.Background(), NewExecutor(original, nil))
	if !errors.Is(err, ErrResultType) {
		t.Fatalf("expected ErrResultType, got %v", err)
	}

	nilResult := func(context.Context, ...any) (any, error) { return nil, nil }
	got, err := ExecuteAs[[]float64](context.Background(), NewExecutor(nilResult, nil))
	if err != nil || got != nil {
		t.Fatalf("expected zero value for nil result, got %v %v", got, err)
	}
}

func TestWrapResolvesRegisteredWrappers(t *testing.T) {
	tr := &tracer{}
	opts := NewOptions()
	_ = AddWrapperWithKey(opts, SamplerSample, "ext-b", tr.wrapper("B"))
	_ = AddWrapper(opts, SamplerSample, tr.wrapper("U"))
	_ = AddWrapperWithKey(opts, SamplerSample, "ext-a", tr.wrapper("A"))

	out, err := Wrap(context.Background(), opts, SamplerSample, tr.original("done"))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected result %v", out)
	}
	want := []string{"U:before", "B:before", "A:before", "original", "A:after", "B:after", "U:after"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}
