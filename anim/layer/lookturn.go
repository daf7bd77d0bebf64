package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// lookTurnReferenceAngle is the fixed reference the look input is normalized
// against: an input of ±90 degrees maps to the full authored extreme.
const lookTurnReferenceAngle float32 = 90

// LookTurnSettings configures the look/turn layer: a continuous look input,
// expressed as a fraction of the ±90 degree reference, rotates a spine chain
// toward one of two authored extremes chosen by the input's sign.
type LookTurnSettings struct {
	// Chain names the rig chain whose elements share the rotation.
	Chain string `yaml:"chain"`

	// LookParam names the scalar parameter carrying the look offset in
	// degrees, negative for one side and positive for the other.
	LookParam string `yaml:"lookParam"`

	// NegativeExtreme and PositiveExtreme are the authored full-deflection
	// rotations in XYZ Euler degrees, applied in root (component) space and
	// distributed evenly across the chain.
	NegativeExtreme [3]float32 `yaml:"negativeExtreme"`
	PositiveExtreme [3]float32 `yaml:"positiveExtreme"`
}

// Kind returns KindLookTurn.
func (s *LookTurnSettings) Kind() Kind { return KindLookTurn }

// Validate checks the chain and parameter references.
func (s *LookTurnSettings) Validate() error {
	if s.Chain == "" {
		return fmt.Errorf("chain is required")
	}
	if s.LookParam == "" {
		return fmt.Errorf("lookParam is required")
	}
	return nil
}

type lookTurnLayer struct {
	baseLayer
	settings *LookTurnSettings

	chain   []rig.Handle
	lookIdx int

	negative mgl32.Quat
	positive mgl32.Quat

	// Frame snapshot: signed fraction of the reference angle, in [-1, 1].
	snapFraction float32
}

var _ Layer = &lookTurnLayer{}

func (l *lookTurnLayer) Kind() Kind { return KindLookTurn }

func (l *lookTurnLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*LookTurnSettings)
	if !ok {
		return errSettingsType(KindLookTurn, settings)
	}
	l.job = job
	l.settings = s
	l.chain = job.Binding.ResolveChain(s.Chain)
	l.lookIdx = job.Params.Index(s.LookParam)
	l.negative = eulerDegQuat(s.NegativeExtreme)
	l.positive = eulerDegQuat(s.PositiveExtreme)
	l.status = StatusInactive
	return nil
}

func (l *lookTurnLayer) Link(settings Settings) error {
	s, ok := settings.(*LookTurnSettings)
	if !ok {
		return errSettingsType(KindLookTurn, settings)
	}
	l.settings = s
	l.negative = eulerDegQuat(s.NegativeExtreme)
	l.positive = eulerDegQuat(s.PositiveExtreme)
	l.snapFraction = 0
	l.status = StatusActive
	return nil
}

func (l *lookTurnLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
	if l.status == StatusUnbound {
		return
	}
	look := l.job.Params.Scalar(l.lookIdx)
	l.snapFraction = common.Clamp(look/lookTurnReferenceAngle, -1, 1)
}

func (l *lookTurnLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() || len(l.chain) == 0 {
		return
	}

	frac := l.snapFraction
	if frac == 0 {
		return
	}
	extreme := l.positive
	if frac < 0 {
		extreme = l.negative
		frac = -frac
	}

	// The deflection is shared evenly across the chain so each element
	// contributes an equal slice of the total rotation.
	share := frac / float32(len(l.chain))
	step := rig.IdentityPose()
	step.Space = rig.SpaceComponent
	step.Transform.Rotation = common.SlerpShortest(mgl32.QuatIdent(), extreme, share)

	for _, h := range l.chain {
		if !h.Valid() {
			continue
		}
		pose.Apply(h, step, l.weight)
	}
}

func (l *lookTurnLayer) PostEvaluate() {}

func (l *lookTurnLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.chain = nil
}

// eulerDegQuat converts authored XYZ Euler degrees into a quaternion.
func eulerDegQuat(e [3]float32) mgl32.Quat {
	return mgl32.AnglesToQuat(
		mgl32.DegToRad(e[0]),
		mgl32.DegToRad(e[1]),
		mgl32.DegToRad(e[2]),
		mgl32.XYZ,
	)
}
