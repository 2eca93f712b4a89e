package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView answers whether a module, or a single action of a module keyed by
// ActionKey, is switched off by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ActionKey builds the pause key for one action of a module, e.g.
// "lending.borrow".
func ActionKey(module, action string) string {
	module = strings.TrimSpace(module)
	action = strings.TrimSpace(action)
	if module == "" || action == "" {
		return module
	}
	return module + "." + action
}

// StaticPauses is a fixed set of paused keys, typically loaded from
// configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
