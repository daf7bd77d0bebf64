// Package layer implements the procedural pose contributors composed on top
// of the baseline animated pose every frame, and the stack that sequences
// them.
//
// Every layer variant follows the same lifecycle:
//
//	Unbound → Bind → Bound(Inactive) → Link → Bound(Active) → Unbind → Unbound
//
// Bind resolves bone handles and allocates scratch state once per
// instance-settings pair. Link (re)initializes playback counters and resets
// all spring dynamics; it may recur while bound when settings are hot-swapped.
// Per frame, Prepare snapshots every externally owned value on the main
// thread, Evaluate mutates the shared pose buffer using only that snapshot,
// and PostEvaluate runs optional main-thread follow-up work. The host's phase
// barrier is the only synchronization: no two phases of the same instance
// ever run concurrently.
package layer

import (
	"fmt"

	"github.com/whosteenie/rigkit/anim/rig"
)

// WeightEpsilon is the blend weight below which a layer's Evaluate must be a
// true no-op, leaving the pose buffer bit-identical.
const WeightEpsilon = 1e-5

// Status is the lifecycle state of a layer instance.
type Status int

const (
	// StatusUnbound means the layer holds no bone handles or scratch state.
	StatusUnbound Status = iota

	// StatusInactive means the layer is bound but not yet linked for evaluation.
	StatusInactive

	// StatusActive means the layer is bound, linked, and eligible for evaluation.
	StatusActive
)

// Layer is one independently configured procedural pose contributor.
// Implementations are small state machines owned by exactly one skeleton
// instance; they are never shared.
type Layer interface {
	// Kind returns the layer's variant identifier.
	//
	// Returns:
	//   - Kind: the variant kind
	Kind() Kind

	// Bind resolves the layer's bone references into live handles for one
	// skeleton instance, allocates per-layer scratch state, and resets spring
	// dynamics. One-time per instance-settings pair.
	//
	// Parameters:
	//   - job: the shared per-instance context
	//   - settings: the layer's immutable settings asset
	//
	// Returns:
	//   - error: error if the settings are not this variant's type or fail validation
	Bind(job *JobData, settings Settings) error

	// Link (re)initializes playback counters and cached poses and resets all
	// spring dynamics, marking the layer eligible for evaluation. It may be
	// called again while bound to hot-swap settings; stale dynamics must
	// never bleed through a relink.
	//
	// Parameters:
	//   - settings: the settings to (re)link against
	//
	// Returns:
	//   - error: error if the settings are not this variant's type
	Link(settings Settings) error

	// Prepare snapshots all externally owned values the Evaluate step will
	// need. Runs once per frame on the main thread; this is the only point
	// where the layer reads mutable external state.
	//
	// Parameters:
	//   - weight: the layer's blend weight for this frame, in [0, 1]
	//   - dt: the frame delta time in seconds
	Prepare(weight, dt float32)

	// Evaluate mutates the shared pose buffer for this layer's bound bones
	// using only the snapshot taken in Prepare. Runs once per frame during
	// the evaluation phase, possibly on a worker thread. Weights below
	// WeightEpsilon must leave the buffer untouched.
	//
	// Parameters:
	//   - pose: the shared mutable pose buffer
	Evaluate(pose *rig.PoseBuffer)

	// PostEvaluate runs optional main-thread work after the evaluation phase,
	// such as casting a ray from a position computed during Evaluate for use
	// next frame.
	PostEvaluate()

	// Unbind releases scratch allocations and bone handles. Safe to call on
	// an already-unbound layer.
	Unbind()
}

// errSettingsType builds the error for a settings type mismatch at Bind/Link.
func errSettingsType(want Kind, got Settings) error {
	return fmt.Errorf("layer %q: settings have kind %q", want, got.Kind())
}

// baseLayer carries the lifecycle state shared by every variant.
type baseLayer struct {
	status Status
	job    *JobData
	weight float32
	dt     float32
}

// prepareBase records the frame's weight and delta time and reports the
// effective weight, clamped to [0, 1]. Inactive layers report zero.
func (b *baseLayer) prepareBase(weight, dt float32) float32 {
	if weight < 0 {
		weight = 0
	} else if weight > 1 {
		weight = 1
	}
	b.dt = dt
	if b.status != StatusActive {
		b.weight = 0
		return 0
	}
	b.weight = weight
	return weight
}

// skippable reports whether this frame's evaluation should be skipped
// entirely (unbound, inactive, or weight below epsilon).
func (b *baseLayer) skippable() bool {
	return b.status != StatusActive || b.weight < WeightEpsilon
}
