package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/ik"
	"github.com/whosteenie/rigkit/anim/rig"
)

// LimbIKSettings configures a limb IK layer driving the two-bone solver for
// one hand or foot chain. Target and hint are themselves rig elements,
// animated or placed by other layers earlier in the stack.
type LimbIKSettings struct {
	// RootBone, MidBone, TipBone are the solved chain (e.g. upperarm,
	// lowerarm, hand).
	RootBone string `yaml:"rootBone"`
	MidBone  string `yaml:"midBone"`
	TipBone  string `yaml:"tipBone"`

	// TargetBone is the element the tip is driven toward.
	TargetBone string `yaml:"targetBone"`

	// HintBone is the pole element biasing the bend plane; optional.
	HintBone string `yaml:"hintBone"`

	// PositionWeight, RotationWeight, HintWeight scale the solve, multiplied
	// by the layer weight each frame.
	PositionWeight float32 `yaml:"positionWeight"`
	RotationWeight float32 `yaml:"rotationWeight"`
	HintWeight     float32 `yaml:"hintWeight"`

	// RootYawOffsetParam optionally names a scalar parameter carrying a root
	// yaw offset in degrees. When set, the target and hint goals are
	// reprojected by the negated offset around the skeleton root before the
	// solve: the foot variant of a turning human skeleton uses this to keep
	// goals planted while the root yaw is procedurally offset.
	RootYawOffsetParam string `yaml:"rootYawOffsetParam"`
}

// Kind returns KindLimbIK.
func (s *LimbIKSettings) Kind() Kind { return KindLimbIK }

// Validate checks the chain and target references.
func (s *LimbIKSettings) Validate() error {
	if s.RootBone == "" || s.MidBone == "" || s.TipBone == "" {
		return fmt.Errorf("rootBone, midBone, and tipBone are required")
	}
	if s.TargetBone == "" {
		return fmt.Errorf("targetBone is required")
	}
	return nil
}

type limbIKLayer struct {
	baseLayer
	settings *LimbIKSettings

	root, mid, tip rig.Handle
	target, hint   rig.Handle
	yawIdx         int

	// Frame snapshot.
	snapYaw float32
}

var _ Layer = &limbIKLayer{}

func (l *limbIKLayer) Kind() Kind { return KindLimbIK }

func (l *limbIKLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*LimbIKSettings)
	if !ok {
		return errSettingsType(KindLimbIK, settings)
	}
	l.job = job
	l.settings = s
	l.root = job.Binding.Resolve(s.RootBone)
	l.mid = job.Binding.Resolve(s.MidBone)
	l.tip = job.Binding.Resolve(s.TipBone)
	l.target = job.Binding.Resolve(s.TargetBone)
	l.hint = rig.InvalidHandle()
	if s.HintBone != "" {
		l.hint = job.Binding.Resolve(s.HintBone)
	}
	l.yawIdx = -1
	if s.RootYawOffsetParam != "" {
		l.yawIdx = job.Params.Index(s.RootYawOffsetParam)
	}
	l.status = StatusInactive
	return nil
}

func (l *limbIKLayer) Link(settings Settings) error {
	s, ok := settings.(*LimbIKSettings)
	if !ok {
		return errSettingsType(KindLimbIK, settings)
	}
	l.settings = s
	l.snapYaw = 0
	l.status = StatusActive
	return nil
}

func (l *limbIKLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	l.snapYaw = 0
	if l.yawIdx >= 0 {
		l.snapYaw = l.job.Params.Scalar(l.yawIdx)
	}
}

func (l *limbIKLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() {
		return
	}
	if !l.root.Valid() || !l.mid.Valid() || !l.tip.Valid() || !l.target.Valid() {
		return
	}
	s := l.settings

	root := pose.Component(l.root)
	mid := pose.Component(l.mid)
	tip := pose.Component(l.tip)
	target := pose.Component(l.target)

	hint := rig.IdentityTransform()
	hasHint := l.hint.Valid()
	if hasHint {
		hint = pose.Component(l.hint)
	}

	if l.snapYaw != 0 {
		rootPos := pose.Component(l.job.Root).Position
		target = reprojectYaw(target, rootPos, -l.snapYaw)
		if hasHint {
			hint = reprojectYaw(hint, rootPos, -l.snapYaw)
		}
	}

	ik.Solve(&root, &mid, &tip, target, hint, ik.Weights{
		Position:     s.PositionWeight * l.weight,
		Rotation:     s.RotationWeight * l.weight,
		Hint:         s.HintWeight,
		HasValidHint: hasHint,
	})

	// Write root first: SetComponent re-expresses each solved transform
	// through its parent's current component transform, so parents must be
	// updated before their children.
	pose.SetComponent(l.root, root)
	pose.SetComponent(l.mid, mid)
	pose.SetComponent(l.tip, tip)
}

func (l *limbIKLayer) PostEvaluate() {}

func (l *limbIKLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.root = rig.InvalidHandle()
	l.mid = rig.InvalidHandle()
	l.tip = rig.InvalidHandle()
	l.target = rig.InvalidHandle()
	l.hint = rig.InvalidHandle()
}

// reprojectYaw rotates t's position and orientation around the vertical axis
// through pivot by yawDeg degrees.
func reprojectYaw(t rig.Transform, pivot mgl32.Vec3, yawDeg float32) rig.Transform {
	q := mgl32.QuatRotate(mgl32.DegToRad(yawDeg), mgl32.Vec3{0, 1, 0})
	t.Position = pivot.Add(q.Rotate(t.Position.Sub(pivot)))
	t.Rotation = q.Mul(t.Rotation).Normalize()
	return t
}
