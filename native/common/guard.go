package common

import "strings"

type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call with ErrModulePaused when the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView backed by a fixed module list, typically the
// PausedModules config entry.
type StaticPauses map[string]struct{}

// NewStaticPauses builds a pause set from module names (case-insensitive).
func NewStaticPauses(modules []string) StaticPauses {
	set := make(StaticPauses, len(modules))
	for _, module := range modules {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func (s StaticPauses) IsPaused(module string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(module))]
	return ok
}
