package layer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// PoseSamplerSettings configures the pose sampler layer: a three-lane weapon
// pose blend driven by a signed lane weight, plus a spine stabilization pass
// that counter-rotates the spine root against yaw the pelvis has accumulated
// since the default pose was baked.
type PoseSamplerSettings struct {
	// WeaponBone receives the blended lane pose.
	WeaponBone string `yaml:"weaponBone"`

	// LeftPose, NeutralPose, RightPose are the three authored lane poses.
	// A signed lane weight of -1 selects left, 0 neutral, +1 right; fractional
	// values blend the neutral pose toward the chosen side.
	LeftPose    PoseSpec `yaml:"leftPose"`
	NeutralPose PoseSpec `yaml:"neutralPose"`
	RightPose   PoseSpec `yaml:"rightPose"`

	// LaneParam names the signed scalar parameter selecting the lane.
	LaneParam string `yaml:"laneParam"`

	// SpineRootBone is counter-rotated against the pelvis yaw; optional.
	SpineRootBone string `yaml:"spineRootBone"`

	// PelvisBone is the element whose accumulated yaw is stabilized against.
	PelvisBone string `yaml:"pelvisBone"`

	// StabilizeParam names the scalar parameter weighting the stabilization.
	StabilizeParam string `yaml:"stabilizeParam"`
}

// Kind returns KindPoseSampler.
func (s *PoseSamplerSettings) Kind() Kind { return KindPoseSampler }

// Validate checks the bone references and authored poses.
func (s *PoseSamplerSettings) Validate() error {
	if s.WeaponBone == "" {
		return fmt.Errorf("weaponBone is required")
	}
	if _, err := s.LeftPose.Pose(); err != nil {
		return fmt.Errorf("leftPose: %w", err)
	}
	if _, err := s.NeutralPose.Pose(); err != nil {
		return fmt.Errorf("neutralPose: %w", err)
	}
	if _, err := s.RightPose.Pose(); err != nil {
		return fmt.Errorf("rightPose: %w", err)
	}
	if s.SpineRootBone != "" && s.PelvisBone == "" {
		return fmt.Errorf("pelvisBone is required when spineRootBone is set")
	}
	return nil
}

type poseSamplerLayer struct {
	baseLayer
	settings *PoseSamplerSettings

	weapon, spine, pelvis rig.Handle
	laneIdx, stabilizeIdx int

	left, neutral, right rig.Pose

	// Baked once from the first evaluated frame after a link.
	basePelvisYaw float32
	baked         bool

	// Frame snapshot.
	snapLane      float32
	snapStabilize float32
}

var _ Layer = &poseSamplerLayer{}

func (l *poseSamplerLayer) Kind() Kind { return KindPoseSampler }

func (l *poseSamplerLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*PoseSamplerSettings)
	if !ok {
		return errSettingsType(KindPoseSampler, settings)
	}
	l.job = job
	l.settings = s
	l.weapon = job.Binding.Resolve(s.WeaponBone)
	l.spine = rig.InvalidHandle()
	if s.SpineRootBone != "" {
		l.spine = job.Binding.Resolve(s.SpineRootBone)
	}
	l.pelvis = rig.InvalidHandle()
	if s.PelvisBone != "" {
		l.pelvis = job.Binding.Resolve(s.PelvisBone)
	}
	l.laneIdx = job.Params.Index(s.LaneParam)
	l.stabilizeIdx = -1
	if s.StabilizeParam != "" {
		l.stabilizeIdx = job.Params.Index(s.StabilizeParam)
	}

	var err error
	if l.left, err = s.LeftPose.Pose(); err != nil {
		return fmt.Errorf("leftPose: %w", err)
	}
	if l.neutral, err = s.NeutralPose.Pose(); err != nil {
		return fmt.Errorf("neutralPose: %w", err)
	}
	if l.right, err = s.RightPose.Pose(); err != nil {
		return fmt.Errorf("rightPose: %w", err)
	}
	l.baked = false
	l.status = StatusInactive
	return nil
}

func (l *poseSamplerLayer) Link(settings Settings) error {
	s, ok := settings.(*PoseSamplerSettings)
	if !ok {
		return errSettingsType(KindPoseSampler, settings)
	}
	l.settings = s
	var err error
	if l.left, err = s.LeftPose.Pose(); err != nil {
		return fmt.Errorf("leftPose: %w", err)
	}
	if l.neutral, err = s.NeutralPose.Pose(); err != nil {
		return fmt.Errorf("neutralPose: %w", err)
	}
	if l.right, err = s.RightPose.Pose(); err != nil {
		return fmt.Errorf("rightPose: %w", err)
	}
	l.baked = false
	l.status = StatusActive
	return nil
}

func (l *poseSamplerLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	l.snapLane = common.Clamp(l.job.Params.Scalar(l.laneIdx), -1, 1)
	l.snapStabilize = 0
	if l.stabilizeIdx >= 0 {
		l.snapStabilize = common.Clamp(l.job.Params.Scalar(l.stabilizeIdx), 0, 1)
	}
}

func (l *poseSamplerLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() {
		return
	}

	// The default pose is baked from the first evaluated frame after a link:
	// the pelvis yaw observed here is the stabilization baseline.
	if !l.baked {
		if l.pelvis.Valid() {
			l.basePelvisYaw = yawOf(pose.Component(l.pelvis).Rotation)
		}
		l.baked = true
	}

	if l.weapon.Valid() {
		lane := l.neutral
		if l.snapLane < 0 {
			lane.Transform = l.neutral.Transform.Lerp(l.left.Transform, -l.snapLane)
		} else if l.snapLane > 0 {
			lane.Transform = l.neutral.Transform.Lerp(l.right.Transform, l.snapLane)
		}
		pose.Apply(l.weapon, lane, l.weight)
	}

	l.stabilizeSpine(pose)
}

// stabilizeSpine counter-rotates the spine root against the yaw the pelvis has
// accumulated since the bake, weighted by the stabilize input.
func (l *poseSamplerLayer) stabilizeSpine(pose *rig.PoseBuffer) {
	if !l.spine.Valid() || !l.pelvis.Valid() || l.snapStabilize <= 0 {
		return
	}

	yawDelta := yawOf(pose.Component(l.pelvis).Rotation) - l.basePelvisYaw

	counter := rig.IdentityPose()
	counter.Space = rig.SpaceComponent
	counter.Transform.Rotation = mgl32.QuatRotate(-yawDelta, mgl32.Vec3{0, 1, 0})
	pose.Apply(l.spine, counter, l.weight*l.snapStabilize)
}

func (l *poseSamplerLayer) PostEvaluate() {}

func (l *poseSamplerLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.weapon = rig.InvalidHandle()
	l.spine = rig.InvalidHandle()
	l.pelvis = rig.InvalidHandle()
	l.baked = false
}

// yawOf extracts the rotation's heading around the vertical axis, in radians.
func yawOf(q mgl32.Quat) float32 {
	f := q.Rotate(mgl32.Vec3{0, 0, 1})
	return float32(math.Atan2(float64(f.X()), float64(f.Z())))
}
