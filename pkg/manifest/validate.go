package manifest

import (
	"errors"
	"fmt"
	"strings"

	patcher "github.com/goliatone/go-patcher"
)

// Validate checks the manifest structure: version, extension names and every
// entry's hook, callable name and guard engine. All problems are reported at
// once; unknown hooks surface as *patcher.UnknownHookError.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest: nil manifest")
	}
	var errs []error

	if m.Version == "" {
		errs = append(errs, errors.New("manifest: version field is required"))
	} else if m.Version != Version {
		errs = append(errs, fmt.Errorf("manifest: unsupported version %q (supported: %q)", m.Version, Version))
	}

	seen := make(map[string]bool, len(m.Extensions))
	for i, ext := range m.Extensions {
		name := strings.TrimSpace(ext.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("manifest: extensions[%d]: name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("manifest: extensions[%d]: duplicate name %q", i, name))
		}
		seen[name] = true

		for j, entry := range ext.Callbacks {
			path := fmt.Sprintf("extensions[%d].callbacks[%d]", i, j)
			if _, err := patcher.ParseCallbackHook(entry.Hook); err != nil {
				errs = append(errs, fmt.Errorf("manifest: %s: %w", path, err))
			}
			errs = append(errs, validateEntry(path, entry)...)
		}
		for j, entry := range ext.Wrappers {
			path := fmt.Sprintf("extensions[%d].wrappers[%d]", i, j)
			if _, err := patcher.ParseWrapperHook(entry.Hook); err != nil {
				errs = append(errs, fmt.Errorf("manifest: %s: %w", path, err))
			}
			errs = append(errs, validateEntry(path, entry)...)
		}
	}

	return errors.Join(errs...)
}

func validateEntry(path string, entry Entry) []error {
	var errs []error
	if strings.TrimSpace(entry.Use) == "" {
		errs = append(errs, fmt.Errorf("manifest: %s: use is required", path))
	}
	if entry.Engine != "" && strings.TrimSpace(entry.When) == "" {
		errs = append(errs, fmt.Errorf("manifest: %s: engine %q set without a when expression", path, entry.Engine))
	}
	switch strings.ToLower(strings.TrimSpace(entry.Engine)) {
	case "", patcher.EngineExpr, patcher.EngineCEL, patcher.EngineJS:
	default:
		errs = append(errs, fmt.Errorf("manifest: %s: %w: %q", path, patcher.ErrUnknownEngine, entry.Engine))
	}
	return errs
}
