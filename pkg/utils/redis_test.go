package utils

import "testing"

func TestDispatchSlotScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if slotAcquireScript == nil || slotReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireDispatchSlot_RejectsInvalidArgs(t *testing.T) {
	if _, err := AcquireDispatchSlot(nil, nil, "k", 0); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseDispatchSlot(nil, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
