package layer

import (
	"fmt"
	"sync"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/whosteenie/rigkit/anim/rig"
)

// Stack sequences the procedural layers of one skeleton instance. Layers
// evaluate in a fixed, deterministic order against the stack's shared pose
// buffer: each layer observes the pose state left by every layer before it.
//
// Structural changes (add, remove, relink) are deferred and take effect at the
// next frame boundary, so an in-flight frame never observes a half-applied
// mutation.
type Stack interface {
	// Name returns the stack's identifier.
	//
	// Returns:
	//   - string: the stack name
	Name() string

	// Job returns the shared per-instance context the stack binds layers with.
	//
	// Returns:
	//   - *JobData: the instance context
	Job() *JobData

	// Pose returns the stack's shared pose buffer, valid after the most recent
	// Evaluate until the next frame begins.
	//
	// Returns:
	//   - *rig.PoseBuffer: the composed pose
	Pose() *rig.PoseBuffer

	// Add binds and links a new layer under the given name, appended to the
	// evaluation order at the next frame boundary.
	//
	// Parameters:
	//   - name: the unique layer name within this stack
	//   - settings: the layer's settings asset
	//   - weight: the initial blend weight in [0, 1]
	//
	// Returns:
	//   - error: error if the name is taken or the layer fails to bind
	Add(name string, settings Settings, weight float32) error

	// AddBundle adds every layer of a decoded settings bundle in authored
	// order, named "<kind>_<index>", each at full weight.
	//
	// Parameters:
	//   - b: the decoded bundle
	//
	// Returns:
	//   - error: error if any layer fails to bind
	AddBundle(b *Bundle) error

	// Remove unbinds and drops the named layer at the next frame boundary.
	//
	// Parameters:
	//   - name: the layer to remove
	Remove(name string)

	// Relink hot-swaps the named layer's settings at the next frame boundary,
	// resetting its dynamics.
	//
	// Parameters:
	//   - name: the layer to relink
	//   - settings: the replacement settings
	//
	// Returns:
	//   - error: error if the layer is unknown or the settings kind mismatches
	Relink(name string, settings Settings) error

	// SetWeight sets the named layer's blend weight immediately, cancelling
	// any running fade.
	//
	// Parameters:
	//   - name: the layer to adjust
	//   - weight: the new weight in [0, 1]
	SetWeight(name string, weight float32)

	// Fade animates the named layer's weight toward a target over a duration.
	//
	// Parameters:
	//   - name: the layer to fade
	//   - to: the target weight in [0, 1]
	//   - duration: the fade duration in seconds
	//   - fn: the easing curve
	Fade(name string, to, duration float32, fn ease.TweenFunc)

	// Weight returns the named layer's current blend weight, zero for unknown
	// layers.
	//
	// Parameters:
	//   - name: the layer to query
	//
	// Returns:
	//   - float32: the current weight
	Weight(name string) float32

	// Prepare opens the frame on the main thread: applies pending structural
	// changes, advances weight fades, and snapshots external state into every
	// layer.
	//
	// Parameters:
	//   - dt: the frame delta time in seconds
	Prepare(dt float32)

	// Evaluate resets the pose buffer to the base pose and runs every layer's
	// evaluation in stack order. May run on a worker thread; it touches only
	// the pose buffer and per-layer snapshots.
	Evaluate()

	// PostEvaluate runs every layer's main-thread follow-up work.
	PostEvaluate()

	// SetBasePose installs the baseline animated local pose the buffer resets
	// to at the start of every Evaluate.
	//
	// Parameters:
	//   - base: one local transform per bone in index order, or nil for bind pose
	//
	// Returns:
	//   - error: error if the slice length does not match the bone count
	SetBasePose(base []rig.Transform) error

	// Close unbinds every layer and discards pending changes.
	Close()
}

// stackEntry pairs one bound layer with its name, settings, and weight state.
type stackEntry struct {
	name     string
	layer    Layer
	settings Settings
	weight   float32
	fade     *gween.Tween
}

type stack struct {
	mu   *sync.Mutex
	name string
	job  *JobData
	pose *rig.PoseBuffer

	// base is the baseline animated local pose the buffer resets to each
	// frame; nil means the skeleton's bind pose.
	base []rig.Transform

	entries []*stackEntry

	pendingAdd    []*stackEntry
	pendingRemove []string
	pendingRelink map[string]Settings
}

// Ensure stack implements Stack interface.
var _ Stack = &stack{}

// NewStack creates a layer stack for one skeleton instance.
//
// Parameters:
//   - name: the stack identifier
//   - job: the shared per-instance context (must not be nil)
//   - options: functional options to further configure the stack
//
// Returns:
//   - Stack: the newly created stack
func NewStack(name string, job *JobData, options ...StackBuilderOption) Stack {
	if job == nil {
		panic("layer: NewStack requires a non-nil JobData")
	}
	s := &stack{
		mu:            &sync.Mutex{},
		name:          name,
		job:           job,
		pose:          rig.NewPoseBuffer(job.Binding.Skeleton()),
		pendingRelink: make(map[string]Settings),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *stack) Name() string {
	return s.name
}

func (s *stack) Job() *JobData {
	return s.job
}

func (s *stack) Pose() *rig.PoseBuffer {
	return s.pose
}

func (s *stack) Add(name string, settings Settings, weight float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(name) != nil || s.findPendingLocked(name) != nil {
		return fmt.Errorf("stack %s: layer %q already exists", s.name, name)
	}

	l, err := New(settings)
	if err != nil {
		return fmt.Errorf("stack %s: %w", s.name, err)
	}
	if err := l.Bind(s.job, settings); err != nil {
		return fmt.Errorf("stack %s: failed to bind layer %q: %w", s.name, name, err)
	}
	if err := l.Link(settings); err != nil {
		l.Unbind()
		return fmt.Errorf("stack %s: failed to link layer %q: %w", s.name, name, err)
	}

	s.pendingAdd = append(s.pendingAdd, &stackEntry{
		name:     name,
		layer:    l,
		settings: settings,
		weight:   clampWeight(weight),
	})
	return nil
}

func (s *stack) AddBundle(b *Bundle) error {
	for i, settings := range b.Layers {
		name := fmt.Sprintf("%s_%d", settings.Kind(), i)
		if err := s.Add(name, settings, 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *stack) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRemove = append(s.pendingRemove, name)
}

func (s *stack) Relink(name string, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findLocked(name)
	if e == nil {
		e = s.findPendingLocked(name)
	}
	if e == nil {
		return fmt.Errorf("stack %s: unknown layer %q", s.name, name)
	}
	if e.settings.Kind() != settings.Kind() {
		return fmt.Errorf("stack %s: layer %q is %q, cannot relink as %q",
			s.name, name, e.settings.Kind(), settings.Kind())
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("stack %s: layer %q: invalid settings: %w", s.name, name, err)
	}
	s.pendingRelink[name] = settings
	return nil
}

func (s *stack) SetWeight(name string, weight float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.findAnyLocked(name); e != nil {
		e.weight = clampWeight(weight)
		e.fade = nil
	}
}

func (s *stack) Fade(name string, to, duration float32, fn ease.TweenFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.findAnyLocked(name); e != nil {
		e.fade = gween.New(e.weight, clampWeight(to), duration, fn)
	}
}

func (s *stack) Weight(name string) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.findAnyLocked(name); e != nil {
		return e.weight
	}
	return 0
}

func (s *stack) Prepare(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyPendingLocked()

	for _, e := range s.entries {
		if e.fade != nil {
			val, done := e.fade.Update(dt)
			e.weight = clampWeight(val)
			if done {
				e.fade = nil
			}
		}
		e.layer.Prepare(e.weight, dt)
	}
}

func (s *stack) Evaluate() {
	if s.base != nil {
		// ResetFrom only fails on a length mismatch, which SetBasePose and
		// WithBasePose already reject.
		_ = s.pose.ResetFrom(s.base)
	} else {
		s.pose.Reset()
	}
	for _, e := range s.entries {
		e.layer.Evaluate(s.pose)
	}
}

func (s *stack) PostEvaluate() {
	for _, e := range s.entries {
		e.layer.PostEvaluate()
	}
}

func (s *stack) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.layer.Unbind()
	}
	for _, e := range s.pendingAdd {
		e.layer.Unbind()
	}
	s.entries = nil
	s.pendingAdd = nil
	s.pendingRemove = nil
	s.pendingRelink = make(map[string]Settings)
}

func (s *stack) SetBasePose(base []rig.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if base != nil && len(base) != s.pose.Skeleton().BoneCount() {
		return fmt.Errorf("stack %s: base pose has %d transforms, skeleton has %d bones",
			s.name, len(base), s.pose.Skeleton().BoneCount())
	}
	s.base = base
	return nil
}

// applyPendingLocked applies deferred structural changes at the frame boundary.
func (s *stack) applyPendingLocked() {
	for _, name := range s.pendingRemove {
		for i, e := range s.entries {
			if e.name == name {
				e.layer.Unbind()
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
		for i, e := range s.pendingAdd {
			if e.name == name {
				e.layer.Unbind()
				s.pendingAdd = append(s.pendingAdd[:i], s.pendingAdd[i+1:]...)
				break
			}
		}
	}
	s.pendingRemove = s.pendingRemove[:0]

	s.entries = append(s.entries, s.pendingAdd...)
	s.pendingAdd = s.pendingAdd[:0]

	for name, settings := range s.pendingRelink {
		if e := s.findLocked(name); e != nil {
			if err := e.layer.Link(settings); err == nil {
				e.settings = settings
			}
		}
		delete(s.pendingRelink, name)
	}
}

func (s *stack) findLocked(name string) *stackEntry {
	for _, e := range s.entries {
		if e.name == name {
			return e
		}
	}
	return nil
}

func (s *stack) findPendingLocked(name string) *stackEntry {
	for _, e := range s.pendingAdd {
		if e.name == name {
			return e
		}
	}
	return nil
}

func (s *stack) findAnyLocked(name string) *stackEntry {
	if e := s.findLocked(name); e != nil {
		return e
	}
	return s.findPendingLocked(name)
}

func clampWeight(w float32) float32 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
