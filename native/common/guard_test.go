package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	pauses := StaticPauses{"lending.borrow": true}
	if err := Guard(pauses, "lending"); err != nil {
		t.Fatalf("module should not be paused: %v", err)
	}
	if err := Guard(pauses, ActionKey("lending", "borrow")); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(nil, "lending"); err != nil {
		t.Fatalf("nil view must allow: %v", err)
	}
}

func TestActionKey(t *testing.T) {
	if got := ActionKey("lending", "mint"); got != "lending.mint" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ActionKey("lending", " "); got != "lending" {
		t.Fatalf("unexpected key %q", got)
	}
}
