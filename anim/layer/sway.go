package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/anim/spring"
	"github.com/whosteenie/rigkit/common"
)

// SwayEffect is the authored tuning of one sway sub-effect: how much raw
// input it accepts, how the smoothed value maps onto the weapon bone, and the
// spring that smooths it.
type SwayEffect struct {
	// MaxInput clamps the per-axis input magnitude; zero disables the clamp.
	MaxInput float32 `yaml:"maxInput"`

	// PositionScale maps smoothed input units to a position offset per axis.
	PositionScale [3]float32 `yaml:"positionScale"`

	// RotationScale maps smoothed input units to Euler degrees per axis.
	RotationScale [3]float32 `yaml:"rotationScale"`

	// Spring is the per-axis smoothing spring.
	Spring spring.VectorConfig `yaml:"spring"`
}

// SwaySettings configures the sway layer: three independent sub-effects
// (free-aim sway from accumulated pointer deltas, movement sway from the
// move input, and aim sway active while aiming), all applied additively in
// the weapon bone's local space.
type SwaySettings struct {
	// WeaponBone is the rig element the sway is applied to.
	WeaponBone string `yaml:"weaponBone"`

	// LookDeltaParam names the vector parameter carrying per-frame pointer deltas.
	LookDeltaParam string `yaml:"lookDeltaParam"`

	// MoveInputParam names the vector parameter carrying the movement input.
	MoveInputParam string `yaml:"moveInputParam"`

	// AimParam names the boolean parameter that is true while aiming.
	AimParam string `yaml:"aimParam"`

	// RecenterSpeed is the exponential rate at which accumulated pointer
	// deltas decay back toward zero.
	RecenterSpeed float32 `yaml:"recenterSpeed"`

	FreeAim SwayEffect `yaml:"freeAim"`
	Move    SwayEffect `yaml:"move"`
	Aim     SwayEffect `yaml:"aim"`
}

// Kind returns KindSway.
func (s *SwaySettings) Kind() Kind { return KindSway }

// Validate checks that the weapon bone reference is present.
func (s *SwaySettings) Validate() error {
	if s.WeaponBone == "" {
		return fmt.Errorf("weaponBone is required")
	}
	return nil
}

// swayLayer accumulates clamped pointer/movement input, smooths it through
// per-effect vector springs, and applies the result additively in the weapon
// bone's local space.
type swayLayer struct {
	baseLayer
	settings *SwaySettings

	weapon                    rig.Handle
	lookIdx, moveIdx, aimIdx  int
	accum                     mgl32.Vec3
	freeVal, moveVal, aimVal  mgl32.Vec3
	freeState, moveState, aimState spring.VectorState

	// Frame snapshot, written in Prepare, read in Evaluate.
	snapMove   mgl32.Vec3
	snapAiming bool
}

var _ Layer = &swayLayer{}

func (l *swayLayer) Kind() Kind { return KindSway }

func (l *swayLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*SwaySettings)
	if !ok {
		return errSettingsType(KindSway, settings)
	}
	l.job = job
	l.settings = s
	l.weapon = job.Binding.Resolve(s.WeaponBone)
	l.lookIdx = job.Params.Index(s.LookDeltaParam)
	l.moveIdx = job.Params.Index(s.MoveInputParam)
	l.aimIdx = job.Params.Index(s.AimParam)
	l.resetDynamics()
	l.status = StatusInactive
	return nil
}

func (l *swayLayer) Link(settings Settings) error {
	s, ok := settings.(*SwaySettings)
	if !ok {
		return errSettingsType(KindSway, settings)
	}
	l.settings = s
	l.resetDynamics()
	l.status = StatusActive
	return nil
}

func (l *swayLayer) resetDynamics() {
	l.accum = mgl32.Vec3{}
	l.freeVal, l.moveVal, l.aimVal = mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{}
	l.freeState.Reset()
	l.moveState.Reset()
	l.aimState.Reset()
}

func (l *swayLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	p := l.job.Params
	l.snapMove = p.Vec3(l.moveIdx)
	l.snapAiming = p.Bool(l.aimIdx)

	l.accum = l.accum.Add(p.Vec3(l.lookIdx))
	if l.settings.RecenterSpeed > 0 {
		l.accum = l.accum.Mul(1 - common.DecayFactor(l.settings.RecenterSpeed, dt))
	}
	l.accum = clampVec(l.accum, l.settings.FreeAim.MaxInput)
}

func (l *swayLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() || !l.weapon.Valid() {
		return
	}
	s := l.settings

	l.freeVal = spring.StepVec(l.freeVal, l.accum, s.FreeAim.Spring, &l.freeState, l.dt)
	l.applyEffect(pose, &s.FreeAim, l.freeVal)

	moveTarget := clampVec(l.snapMove, s.Move.MaxInput)
	l.moveVal = spring.StepVec(l.moveVal, moveTarget, s.Move.Spring, &l.moveState, l.dt)
	l.applyEffect(pose, &s.Move, l.moveVal)

	// Aim sway tracks the same accumulated look input but only while aiming;
	// otherwise the spring relaxes back toward zero.
	var aimTarget mgl32.Vec3
	if l.snapAiming {
		aimTarget = clampVec(l.accum, s.Aim.MaxInput)
	}
	l.aimVal = spring.StepVec(l.aimVal, aimTarget, s.Aim.Spring, &l.aimState, l.dt)
	l.applyEffect(pose, &s.Aim, l.aimVal)
}

// applyEffect maps one smoothed sub-effect value onto an additive local-space
// pose on the weapon bone.
func (l *swayLayer) applyEffect(pose *rig.PoseBuffer, e *SwayEffect, val mgl32.Vec3) {
	p := rig.IdentityPose()
	p.Transform.Position = mgl32.Vec3{
		val.X() * e.PositionScale[0],
		val.Y() * e.PositionScale[1],
		val.Z() * e.PositionScale[2],
	}
	p.Transform.Rotation = mgl32.AnglesToQuat(
		mgl32.DegToRad(val.X()*e.RotationScale[0]),
		mgl32.DegToRad(val.Y()*e.RotationScale[1]),
		mgl32.DegToRad(val.Z()*e.RotationScale[2]),
		mgl32.XYZ,
	)
	pose.Apply(l.weapon, p, l.weight)
}

func (l *swayLayer) PostEvaluate() {}

func (l *swayLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.weapon = rig.InvalidHandle()
}

// clampVec clamps every component of v to [-max, max]; max <= 0 disables the clamp.
func clampVec(v mgl32.Vec3, max float32) mgl32.Vec3 {
	if max <= 0 {
		return v
	}
	return mgl32.Vec3{
		common.Clamp(v.X(), -max, max),
		common.Clamp(v.Y(), -max, max),
		common.Clamp(v.Z(), -max, max),
	}
}
