package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// RecoilSettings configures the additive recoil layer. The recoil transform
// itself is computed externally (weapon fire state machine, recoil curves)
// and consumed as-is through two parameters; the layer adds it to the weapon
// IK bone, drags a secondary motion bone behind it with an exponential decay,
// corrects the elbow hint toward its cached pose, and compensates the pivot
// offset of the recoil rotation.
type RecoilSettings struct {
	// WeaponIKBone receives the raw additive recoil transform.
	WeaponIKBone string `yaml:"weaponIkBone"`

	// MotionBone is the secondary IK-motion bone smoothed behind the recoil.
	MotionBone string `yaml:"motionBone"`

	// ElbowBone is blended back toward its cached pose so the elbow hint does
	// not chase the recoiling weapon.
	ElbowBone string `yaml:"elbowBone"`

	// RecoilPositionParam names the vector parameter with the recoil offset.
	RecoilPositionParam string `yaml:"recoilPositionParam"`

	// RecoilRotationParam names the vector parameter with the recoil rotation
	// as XYZ Euler degrees.
	RecoilRotationParam string `yaml:"recoilRotationParam"`

	// MotionDecaySpeed is the exponential rate the motion bone follows the
	// recoil offset with.
	MotionDecaySpeed float32 `yaml:"motionDecaySpeed"`

	// ElbowHintWeight scales the elbow correction blend.
	ElbowHintWeight float32 `yaml:"elbowHintWeight"`

	// PivotOffset is the point, in the weapon bone's frame, the recoil
	// rotation should visually pivot around.
	PivotOffset [3]float32 `yaml:"pivotOffset"`
}

// Kind returns KindRecoil.
func (s *RecoilSettings) Kind() Kind { return KindRecoil }

// Validate checks the required bone references.
func (s *RecoilSettings) Validate() error {
	if s.WeaponIKBone == "" {
		return fmt.Errorf("weaponIkBone is required")
	}
	return nil
}

type recoilLayer struct {
	baseLayer
	settings *RecoilSettings

	weapon, motion, elbow rig.Handle
	posIdx, rotIdx        int

	motionVal        mgl32.Vec3
	cachedElbow      rig.Transform
	cachedElbowValid bool

	// Frame snapshot.
	snapPos mgl32.Vec3
	snapRot mgl32.Quat
}

var _ Layer = &recoilLayer{}

func (l *recoilLayer) Kind() Kind { return KindRecoil }

func (l *recoilLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*RecoilSettings)
	if !ok {
		return errSettingsType(KindRecoil, settings)
	}
	l.job = job
	l.settings = s
	l.weapon = job.Binding.Resolve(s.WeaponIKBone)
	l.motion = rig.InvalidHandle()
	if s.MotionBone != "" {
		l.motion = job.Binding.Resolve(s.MotionBone)
	}
	l.elbow = rig.InvalidHandle()
	if s.ElbowBone != "" {
		l.elbow = job.Binding.Resolve(s.ElbowBone)
	}
	l.posIdx = job.Params.Index(s.RecoilPositionParam)
	l.rotIdx = job.Params.Index(s.RecoilRotationParam)
	l.resetDynamics()
	l.status = StatusInactive
	return nil
}

func (l *recoilLayer) Link(settings Settings) error {
	s, ok := settings.(*RecoilSettings)
	if !ok {
		return errSettingsType(KindRecoil, settings)
	}
	l.settings = s
	l.resetDynamics()
	l.status = StatusActive
	return nil
}

func (l *recoilLayer) resetDynamics() {
	l.motionVal = mgl32.Vec3{}
	l.cachedElbow = rig.IdentityTransform()
	l.cachedElbowValid = false
	l.snapRot = mgl32.QuatIdent()
}

func (l *recoilLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	p := l.job.Params
	l.snapPos = p.Vec3(l.posIdx)
	rot := p.Vec3(l.rotIdx)
	l.snapRot = mgl32.AnglesToQuat(
		mgl32.DegToRad(rot.X()),
		mgl32.DegToRad(rot.Y()),
		mgl32.DegToRad(rot.Z()),
		mgl32.XYZ,
	)
}

func (l *recoilLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() {
		return
	}
	s := l.settings

	// The elbow cache is captured from the first evaluated frame after a
	// link, before any recoil is applied.
	if l.elbow.Valid() && !l.cachedElbowValid {
		l.cachedElbow = pose.Component(l.elbow)
		l.cachedElbowValid = true
	}

	if l.weapon.Valid() {
		// Pivot cache is per-frame: the rotation delta below is measured
		// against this frame's pre-recoil pose, never accumulated.
		cache := pose.Component(l.weapon)

		recoil := rig.IdentityPose()
		recoil.Transform.Position = l.snapPos
		recoil.Transform.Rotation = l.snapRot
		pose.Apply(l.weapon, recoil, l.weight)

		l.applyPivotCorrection(pose, cache)
	}

	if l.motion.Valid() && s.MotionDecaySpeed > 0 {
		f := common.DecayFactor(s.MotionDecaySpeed, l.dt)
		l.motionVal = l.motionVal.Add(l.snapPos.Sub(l.motionVal).Mul(f))
		motion := rig.IdentityPose()
		motion.Transform.Position = l.motionVal
		pose.Apply(l.motion, motion, l.weight)
	}

	if l.elbow.Valid() && l.cachedElbowValid && s.ElbowHintWeight > 0 {
		cur := pose.Component(l.elbow)
		blend := common.Clamp(l.weight*s.ElbowHintWeight, 0, 1)
		pose.SetComponent(l.elbow, cur.Lerp(l.cachedElbow, blend))
	}
}

// applyPivotCorrection shifts the weapon bone so this frame's recoil rotation
// appears to pivot around the authored pivot offset instead of the bone
// origin: a rotation R about point p adds the translation (I-R)p.
func (l *recoilLayer) applyPivotCorrection(pose *rig.PoseBuffer, cache rig.Transform) {
	pivot := mgl32.Vec3{l.settings.PivotOffset[0], l.settings.PivotOffset[1], l.settings.PivotOffset[2]}
	if pivot.Len() < common.Epsilon {
		return
	}

	cur := pose.Component(l.weapon)
	delta := cache.Rotation.Inverse().Mul(cur.Rotation)
	residual := pivot.Sub(delta.Rotate(pivot))

	correction := rig.IdentityPose()
	correction.Space = rig.SpaceComponent
	correction.Transform.Position = cache.Rotation.Rotate(residual)
	pose.Apply(l.weapon, correction, l.weight)
}

func (l *recoilLayer) PostEvaluate() {}

func (l *recoilLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.weapon = rig.InvalidHandle()
	l.motion = rig.InvalidHandle()
	l.elbow = rig.InvalidHandle()
}
