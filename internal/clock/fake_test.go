package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	f := NewFake()

	var order []string
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	f.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	f.AfterFunc(5*time.Second, func() { order = append(order, "never") })

	f.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fired order = %v, want [a b]", order)
	}
	if f.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", f.Pending())
	}
}

func TestFake_StoppedTimerDoesNotFire(t *testing.T) {
	f := NewFake()

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false, want true for pending timer")
	}
	f.Advance(2 * time.Second)

	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	f := NewFake()

	var fired []string
	f.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		f.AfterFunc(time.Second, func() { fired = append(fired, "second") })
	})

	f.Advance(3 * time.Second)

	if len(fired) != 2 {
		t.Fatalf("fired = %v, want [first second]", fired)
	}
}

func TestFake_NowAdvances(t *testing.T) {
	f := NewFake()
	start := f.Now()

	f.Advance(90 * time.Second)

	if got := f.Now().Sub(start); got != 90*time.Second {
		t.Errorf("elapsed = %v, want 90s", got)
	}
}
