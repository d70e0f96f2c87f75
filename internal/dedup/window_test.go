package dedup

import (
	"testing"
	"time"
)

func TestObserveSuppressesRepeatsInsideWindow(t *testing.T) {
	w := New(3 * time.Second)
	base := time.Now()
	w.SetNow(func() time.Time { return base })

	if w.Observe("G1:u1") {
		t.Fatal("first observation is not a duplicate")
	}
	w.SetNow(func() time.Time { return base.Add(time.Second) })
	if !w.Observe("G1:u1") {
		t.Fatal("repeat inside the window must be suppressed")
	}
	if w.Observe("G1:u2") {
		t.Fatal("different key must not be suppressed")
	}
}

func TestObserveAllowsRepeatsAfterWindow(t *testing.T) {
	w := New(3 * time.Second)
	base := time.Now()
	w.SetNow(func() time.Time { return base })

	w.Observe("G1:u1")
	w.SetNow(func() time.Time { return base.Add(10 * time.Second) })
	if w.Observe("G1:u1") {
		t.Fatal("repeat after the window is a fresh observation")
	}
}
