package rig

import (
	"log/slog"
	"sync"
)

// Handle is a resolved, cached reference to one bone of a specific skeleton
// instance. Layers resolve handles once at bind time and read by index every
// frame; an invalid handle simply freezes that bone's contribution.
type Handle struct {
	index int32
}

// InvalidHandle returns a handle that resolves to no bone.
//
// Returns:
//   - Handle: an invalid handle
func InvalidHandle() Handle {
	return Handle{index: -1}
}

// Valid reports whether the handle refers to a live bone.
func (h Handle) Valid() bool {
	return h.index >= 0
}

// Index returns the bone index, or -1 for invalid handles.
func (h Handle) Index() int32 {
	return h.index
}

// Binding resolves rig element and chain names into live bone handles for one
// skeleton instance. Resolution failures are non-fatal: they are logged once
// per name and yield invalid handles, leaving the affected output frozen
// rather than aborting the frame.
type Binding struct {
	mu     *sync.Mutex
	skel   *Skeleton
	warned map[string]bool
}

// NewBinding creates a binding resolver for the given skeleton instance.
//
// Parameters:
//   - skel: the skeleton instance to resolve against
//
// Returns:
//   - *Binding: the new binding resolver
func NewBinding(skel *Skeleton) *Binding {
	return &Binding{
		mu:     &sync.Mutex{},
		skel:   skel,
		warned: make(map[string]bool),
	}
}

// Skeleton returns the skeleton instance this binding resolves against.
func (b *Binding) Skeleton() *Skeleton {
	return b.skel
}

// Resolve resolves an element name to a bone handle. Unknown names log a
// warning once and return an invalid handle.
//
// Parameters:
//   - name: the rig element name to resolve
//
// Returns:
//   - Handle: the resolved handle, invalid if the name is absent
func (b *Binding) Resolve(name string) Handle {
	idx := b.skel.Index(name)
	if idx < 0 {
		b.warnOnce(name, "bone")
		return InvalidHandle()
	}
	return Handle{index: idx}
}

// ResolveChain resolves a chain name to the handles of its member elements in
// chain order. An unknown chain logs a warning once and returns nil; unknown
// members resolve to invalid handles within the returned slice.
//
// Parameters:
//   - name: the rig chain name to resolve
//
// Returns:
//   - []Handle: the resolved member handles, or nil if the chain is absent
func (b *Binding) ResolveChain(name string) []Handle {
	chain, ok := b.skel.rig.Chain(name)
	if !ok {
		b.warnOnce(name, "chain")
		return nil
	}
	handles := make([]Handle, len(chain.Elements))
	for i, en := range chain.Elements {
		handles[i] = b.Resolve(en)
	}
	return handles
}

// warnOnce logs a binding miss the first time a name fails to resolve.
func (b *Binding) warnOnce(name, kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.warned[name] {
		return
	}
	b.warned[name] = true
	slog.Warn("rig: binding failed, contribution frozen",
		"kind", kind,
		"name", name,
	)
}
