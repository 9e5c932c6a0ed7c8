package bind

import (
	"sync/atomic"
)

// Ownership tags how a handle's payload is torn down. The tag is fixed at
// construction and never changes.
type Ownership uint8

const (
	// OwnValue embeds the value in the handle; the optional release
	// callback is its destructor.
	OwnValue Ownership = iota
	// OwnShared routes teardown through a refcounted Shared container.
	OwnShared
	// OwnExternal wraps a value the host owns; a nil release callback
	// suppresses teardown entirely.
	OwnExternal
)

// Handle is the userdata payload for every bound object. It is created
// uncommitted, committed once construction succeeds, and released exactly
// once at collection. Releasing an uncommitted handle is a no-op, which
// makes a failed constructor safe: the reserved slot is collected without
// running teardown over garbage.
type Handle struct {
	meta      *Metadata
	value     any
	shared    *Shared
	release   func(any)
	owner     Ownership
	constView bool
	committed atomic.Bool
	released  atomic.Bool
}

// newHandle reserves an uncommitted handle for a construction in flight.
func newHandle(md *Metadata, owner Ownership, release func(any)) *Handle {
	return &Handle{meta: md, owner: owner, release: release}
}

// Commit stores the constructed payload and marks the handle live.
func (h *Handle) Commit(v any) {
	h.value = v
	h.committed.Store(true)
}

// commitShared adopts a refcounted container as the payload.
func (h *Handle) commitShared(s *Shared) {
	h.shared = s
	h.value = s.Value()
	h.committed.Store(true)
}

// Native returns the wrapped payload for the marshaller's unwrap path.
func (h *Handle) Native() any {
	if !h.committed.Load() || h.released.Load() {
		return nil
	}
	return h.value
}

// Meta returns the class metadata the handle was constructed under.
func (h *Handle) Meta() *Metadata { return h.meta }

// Owner returns the handle's ownership tag.
func (h *Handle) Owner() Ownership { return h.owner }

// IsConst reports whether this is a const view of the payload.
func (h *Handle) IsConst() bool { return h.constView }

// Release runs teardown exactly once. Uncommitted handles are skipped:
// nothing was constructed, so there is nothing to tear down. Both the
// __gc metamethod and the Go finalizer funnel here, and double entry is
// resolved by the atomic swap.
func (h *Handle) Release() {
	if !h.committed.Load() {
		return
	}
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	switch h.owner {
	case OwnShared:
		h.shared.Release()
	default:
		if h.release != nil {
			h.release(h.value)
		}
	}
}

// Shared is a refcounted ownership container. Several handles (or host
// references) can retain the same payload; the destructor runs when the
// count reaches zero.
type Shared struct {
	value   any
	destroy func(any)
	refs    atomic.Int32
}

// NewShared wraps a value with an initial count of one.
func NewShared(v any, destroy func(any)) *Shared {
	s := &Shared{value: v, destroy: destroy}
	s.refs.Store(1)
	return s
}

// Retain increments the reference count.
func (s *Shared) Retain() {
	s.refs.Add(1)
}

// Release decrements the count and destroys the payload at zero.
func (s *Shared) Release() {
	if s.refs.Add(-1) == 0 && s.destroy != nil {
		s.destroy(s.value)
	}
}

// Value returns the contained payload.
func (s *Shared) Value() any { return s.value }

// Refs returns the current reference count.
func (s *Shared) Refs() int32 { return s.refs.Load() }
