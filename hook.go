package patcher

import (
	"strconv"

	"github.com/goliatone/go-patcher/bag"
)

// CallbackHook names an execution point where side-effect callbacks run.
type CallbackHook int

const (
	// OnClone runs after a patcher is cloned with (parent, child).
	OnClone CallbackHook = iota + 1
	// OnLoad runs after model weights are loaded.
	OnLoad
	// OnCleanup runs when a run releases its resources.
	OnCleanup
	// OnPreRun runs right before sampling starts.
	OnPreRun
	// OnPrepareState runs once per step before the model is applied.
	OnPrepareState
	// OnApplyHooks runs when hook patches are applied to the model.
	OnApplyHooks
	// OnRegisterAllHookPatches runs while hook patches are being collected.
	OnRegisterAllHookPatches
	// OnInjectModel runs after injections were applied.
	OnInjectModel
	// OnEjectModel runs after injections were removed.
	OnEjectModel
)

var callbackHookNames = [...]string{
	OnClone:                  "on_clone",
	OnLoad:                   "on_load_after",
	OnCleanup:                "on_cleanup",
	OnPreRun:                 "on_pre_run",
	OnPrepareState:           "on_prepare_state",
	OnApplyHooks:             "on_apply_hooks",
	OnRegisterAllHookPatches: "on_register_all_hook_patches",
	OnInjectModel:            "on_inject_model",
	OnEjectModel:             "on_eject_model",
}

func (h CallbackHook) String() string {
	if !h.Valid() {
		return "CallbackHook(" + strconv.Itoa(int(h)) + ")"
	}
	return callbackHookNames[h]
}

// Valid reports whether h is one of the declared callback hooks.
func (h CallbackHook) Valid() bool {
	return h >= OnClone && h <= OnEjectModel
}

// CallbackHooks lists every callback hook in declaration order.
func CallbackHooks() []CallbackHook {
	out := make([]CallbackHook, 0, len(callbackHookNames)-1)
	for h := OnClone; h <= OnEjectModel; h++ {
		out = append(out, h)
	}
	return out
}

// ParseCallbackHook resolves a wire name such as "on_clone".
func ParseCallbackHook(name string) (CallbackHook, error) {
	for _, h := range CallbackHooks() {
		if h.String() == name {
			return h, nil
		}
	}
	return 0, &UnknownHookError{Kind: KindCallback, Name: name}
}

// WrapperHook names a call site that wrappers can intercept.
type WrapperHook int

const (
	// OuterSample wraps the whole sampling entry point.
	OuterSample WrapperHook = iota + 1
	// SamplerSample wraps the sampler's own loop.
	SamplerSample
	// CalcCondBatch wraps conditioning batch evaluation.
	CalcCondBatch
	// ApplyModel wraps a single model application.
	ApplyModel
	// DiffusionModel wraps the denoising network forward pass.
	DiffusionModel
)

var wrapperHookNames = [...]string{
	OuterSample:    "outer_sample",
	SamplerSample:  "sampler_sample",
	CalcCondBatch:  "calc_cond_batch",
	ApplyModel:     "apply_model",
	DiffusionModel: "diffusion_model",
}

func (h WrapperHook) String() string {
	if !h.Valid() {
		return "WrapperHook(" + strconv.Itoa(int(h)) + ")"
	}
	return wrapperHookNames[h]
}

// Valid reports whether h is one of the declared wrapper hooks.
func (h WrapperHook) Valid() bool {
	return h >= OuterSample && h <= DiffusionModel
}

// WrapperHooks lists every wrapper hook in declaration order.
func WrapperHooks() []WrapperHook {
	out := make([]WrapperHook, 0, len(wrapperHookNames)-1)
	for h := OuterSample; h <= DiffusionModel; h++ {
		out = append(out, h)
	}
	return out
}

// ParseWrapperHook resolves a wire name such as "outer_sample".
func ParseWrapperHook(name string) (WrapperHook, error) {
	for _, h := range WrapperHooks() {
		if h.String() == name {
			return h, nil
		}
	}
	return 0, &UnknownHookError{Kind: KindWrapper, Name: name}
}

// InitCallbacks returns the callback registry skeleton: every declared hook
// mapped to an empty unkeyed list.
func InitCallbacks() *bag.Bag {
	out := bag.New()
	for _, h := range CallbackHooks() {
		slot := bag.New()
		slot.Set(Unkeyed, []Callback{})
		out.Set(h.String(), slot)
	}
	return out
}

// InitWrappers returns the wrapper registry skeleton.
func InitWrappers() *bag.Bag {
	out := bag.New()
	for _, h := range WrapperHooks() {
		slot := bag.New()
		slot.Set(Unkeyed, []Wrapper{})
		out.Set(h.String(), slot)
	}
	return out
}
