package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// CollisionReactionSettings configures the collision reaction layer: a forward
// ray probe from the weapon bone that, when blocked, pulls the weapon toward
// one of two authored blocked poses, scaled by how deep the obstruction sits
// inside the probe range.
type CollisionReactionSettings struct {
	// WeaponBone is the element the probe originates from and the blocked
	// pose is applied to.
	WeaponBone string `yaml:"weaponBone"`

	// ProbeLength is the forward ray length in meters. Must be positive.
	ProbeLength float32 `yaml:"probeLength"`

	// SmoothingSpeed is the exponential rate the reaction blends with.
	SmoothingSpeed float32 `yaml:"smoothingSpeed"`

	// BlockedPoseLow and BlockedPoseHigh are the two authored reaction poses.
	// Which one is targeted depends on the sign-independent select parameter:
	// values at or below zero choose the low pose, positive values the high.
	BlockedPoseLow  PoseSpec `yaml:"blockedPoseLow"`
	BlockedPoseHigh PoseSpec `yaml:"blockedPoseHigh"`

	// SelectParam names the scalar parameter selecting between the two
	// blocked poses (e.g. a crouch or stance amount).
	SelectParam string `yaml:"selectParam"`
}

// Kind returns KindCollisionReaction.
func (s *CollisionReactionSettings) Kind() Kind { return KindCollisionReaction }

// Validate checks the bone reference, probe length, and authored poses.
func (s *CollisionReactionSettings) Validate() error {
	if s.WeaponBone == "" {
		return fmt.Errorf("weaponBone is required")
	}
	if s.ProbeLength <= 0 {
		return fmt.Errorf("probeLength must be positive, got %g", s.ProbeLength)
	}
	if _, err := s.BlockedPoseLow.Pose(); err != nil {
		return fmt.Errorf("blockedPoseLow: %w", err)
	}
	if _, err := s.BlockedPoseHigh.Pose(); err != nil {
		return fmt.Errorf("blockedPoseHigh: %w", err)
	}
	return nil
}

// collisionLayer smooths toward a blocked pose while the probe hits and decays
// back toward identity when it does not. The ray is cast in PostEvaluate from
// this frame's evaluated weapon transform; the result drives next frame's
// reaction, so evaluation itself never touches external state.
type collisionLayer struct {
	baseLayer
	settings *CollisionReactionSettings

	weapon    rig.Handle
	selectIdx int

	low, high rig.Pose

	// penetration is the smoothed normalized obstruction depth in [0, 1].
	penetration float32

	// Written in Evaluate, consumed by PostEvaluate's ray cast.
	probeOrigin mgl32.Vec3
	probeDir    mgl32.Vec3
	probeValid  bool

	// Last cast result, consumed by the next frame's Evaluate.
	hit     bool
	hitDist float32

	// Frame snapshot.
	snapSelect float32
}

var _ Layer = &collisionLayer{}

func (l *collisionLayer) Kind() Kind { return KindCollisionReaction }

func (l *collisionLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*CollisionReactionSettings)
	if !ok {
		return errSettingsType(KindCollisionReaction, settings)
	}
	l.job = job
	l.settings = s
	l.weapon = job.Binding.Resolve(s.WeaponBone)
	l.selectIdx = job.Params.Index(s.SelectParam)

	var err error
	if l.low, err = s.BlockedPoseLow.Pose(); err != nil {
		return fmt.Errorf("blockedPoseLow: %w", err)
	}
	if l.high, err = s.BlockedPoseHigh.Pose(); err != nil {
		return fmt.Errorf("blockedPoseHigh: %w", err)
	}
	l.resetDynamics()
	l.status = StatusInactive
	return nil
}

func (l *collisionLayer) Link(settings Settings) error {
	s, ok := settings.(*CollisionReactionSettings)
	if !ok {
		return errSettingsType(KindCollisionReaction, settings)
	}
	l.settings = s
	var err error
	if l.low, err = s.BlockedPoseLow.Pose(); err != nil {
		return fmt.Errorf("blockedPoseLow: %w", err)
	}
	if l.high, err = s.BlockedPoseHigh.Pose(); err != nil {
		return fmt.Errorf("blockedPoseHigh: %w", err)
	}
	l.resetDynamics()
	l.status = StatusActive
	return nil
}

func (l *collisionLayer) resetDynamics() {
	l.penetration = 0
	l.hit = false
	l.hitDist = 0
	l.probeValid = false
}

func (l *collisionLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	l.snapSelect = l.job.Params.Scalar(l.selectIdx)
}

func (l *collisionLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() || !l.weapon.Valid() {
		l.probeValid = false
		return
	}
	s := l.settings

	// Normalized obstruction depth from last frame's cast: 0 at the probe
	// tip, 1 when the hit sits at the origin.
	target := float32(0)
	if l.hit {
		target = common.Clamp(1-l.hitDist/s.ProbeLength, 0, 1)
	}
	f := common.DecayFactor(s.SmoothingSpeed, l.dt)
	l.penetration += (target - l.penetration) * f

	if l.penetration > common.Epsilon {
		blocked := l.low
		if l.snapSelect > 0 {
			blocked = l.high
		}
		pose.Apply(l.weapon, blocked, l.weight*l.penetration)
	}

	world := pose.World(l.weapon)
	l.probeOrigin = world.Position
	l.probeDir = world.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
	l.probeValid = true
}

// PostEvaluate casts the forward probe from this frame's evaluated weapon
// transform. The result is consumed next frame.
func (l *collisionLayer) PostEvaluate() {
	if !l.probeValid || l.job == nil || l.job.Ray == nil {
		l.hit = false
		return
	}
	dir, ok := common.SafeNormalize(l.probeDir)
	if !ok {
		l.hit = false
		return
	}
	l.hit, l.hitDist = l.job.Ray(l.probeOrigin, dir, l.settings.ProbeLength)
}

func (l *collisionLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.weapon = rig.InvalidHandle()
	l.resetDynamics()
}
