package layer

import (
	"github.com/whosteenie/rigkit/anim/rig"
)

// StackBuilderOption is a functional option for configuring a Stack.
// Use the With* functions to create options.
type StackBuilderOption func(s *stack)

// WithBasePose installs the baseline animated local pose the stack's buffer
// resets to at the start of every frame. Slices whose length does not match
// the skeleton's bone count are ignored; the buffer falls back to bind pose.
//
// Parameters:
//   - base: one local transform per bone in index order
//
// Returns:
//   - StackBuilderOption: option function to apply
func WithBasePose(base []rig.Transform) StackBuilderOption {
	return func(s *stack) {
		if len(base) != s.pose.Skeleton().BoneCount() {
			return
		}
		s.base = base
	}
}

// WithLayers binds and links initial layers from a decoded settings bundle in
// authored order, each named "<kind>_<index>" at full weight. Entries that
// fail to bind are skipped.
//
// Parameters:
//   - b: the decoded bundle
//
// Returns:
//   - StackBuilderOption: option function to apply
func WithLayers(b *Bundle) StackBuilderOption {
	return func(s *stack) {
		_ = s.AddBundle(b)
	}
}
