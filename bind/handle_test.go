package bind

import (
	"testing"
)

func TestHandleReleaseExactlyOnce(t *testing.T) {
	released := 0
	h := newHandle(nil, OwnValue, func(any) { released++ })
	h.Commit("payload")

	h.Release()
	h.Release()
	h.Release()

	if released != 1 {
		t.Errorf("release ran %d times, want 1", released)
	}
}

func TestHandleUncommittedReleaseIsNoop(t *testing.T) {
	released := 0
	h := newHandle(nil, OwnValue, func(any) { released++ })

	h.Release()

	if released != 0 {
		t.Errorf("uncommitted release ran teardown %d times", released)
	}
	if h.Native() != nil {
		t.Error("uncommitted handle should have no payload")
	}

	// A later commit on the same reservation still tears down once.
	h.Commit("payload")
	h.Release()
	h.Release()
	if released != 1 {
		t.Errorf("release after commit ran %d times, want 1", released)
	}
}

func TestHandleNativeAfterRelease(t *testing.T) {
	h := newHandle(nil, OwnValue, nil)
	h.Commit(42)
	if h.Native() != 42 {
		t.Errorf("Native = %v, want 42", h.Native())
	}
	h.Release()
	if h.Native() != nil {
		t.Error("released handle should not expose its payload")
	}
}

func TestHandleExternalNilReleaseSuppressed(t *testing.T) {
	h := newHandle(nil, OwnExternal, nil)
	h.Commit("host-owned")
	h.Release() // must not panic, nothing to run
	if !h.released.Load() {
		t.Error("handle should still mark itself released")
	}
}

func TestSharedRefcount(t *testing.T) {
	destroyed := 0
	s := NewShared("payload", func(any) { destroyed++ })

	s.Retain()
	s.Retain()
	if s.Refs() != 3 {
		t.Fatalf("refs = %d, want 3", s.Refs())
	}

	s.Release()
	s.Release()
	if destroyed != 0 {
		t.Fatal("destroyed before count reached zero")
	}
	s.Release()
	if destroyed != 1 {
		t.Errorf("destroyed %d times, want 1", destroyed)
	}
}

func TestSharedHandles(t *testing.T) {
	destroyed := 0
	s := NewShared("payload", func(any) { destroyed++ })

	h1 := newHandle(nil, OwnShared, nil)
	h1.commitShared(s)
	s.Retain()
	h2 := newHandle(nil, OwnShared, nil)
	h2.commitShared(s)

	h1.Release()
	h1.Release() // double entry on one handle must not double-count
	if destroyed != 0 {
		t.Fatal("destroyed while a handle still holds a reference")
	}
	h2.Release()
	if destroyed != 1 {
		t.Errorf("destroyed %d times, want 1", destroyed)
	}
}

func TestOwnershipTag(t *testing.T) {
	for _, tt := range []struct {
		owner Ownership
	}{{OwnValue}, {OwnShared}, {OwnExternal}} {
		h := newHandle(nil, tt.owner, nil)
		if h.Owner() != tt.owner {
			t.Errorf("Owner = %v, want %v", h.Owner(), tt.owner)
		}
	}
}
