package layer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/anim/spring"
)

const frameDt = float32(1.0 / 60)

// testRig is a first-person arm hierarchy covering every bone the variant
// tests reference. Component positions: upperarm (0,1,0), lowerarm (0,0.5,0),
// hand (0,0,0), so the IK links are 0.5 and 0.5.
func testRig(t *testing.T) (*rig.Skeleton, *JobData, *ParamTable) {
	t.Helper()
	r, err := rig.ParseRig([]byte(`
elements:
  - { name: root, depth: 0 }
  - { name: pelvis, depth: 1 }
  - { name: spine, depth: 2 }
  - { name: weapon, depth: 1 }
  - { name: weapon_ik, depth: 2 }
  - { name: upperarm, depth: 1 }
  - { name: lowerarm, depth: 2 }
  - { name: hand, depth: 3 }
  - { name: hand_target, depth: 1 }
  - { name: elbow_hint, depth: 1 }
chains:
  - name: spine_chain
    elements: [pelvis, spine]
  - name: arm
    elements: [upperarm, lowerarm, hand]
parameters: [lookDelta, moveInput, isAiming, recoilPos, recoilRot, stance, lookYaw, lane, stabilize]
`))
	require.NoError(t, err)

	pos := func(x, y, z float32) rig.Transform {
		tr := rig.IdentityTransform()
		tr.Position = mgl32.Vec3{x, y, z}
		return tr
	}
	skel, err := rig.NewSkeleton(r, rig.WithBindPose(map[string]rig.Transform{
		"weapon":      pos(0.1, 1.4, 0.3),
		"weapon_ik":   pos(0, 0, 0.1),
		"upperarm":    pos(0, 1, 0),
		"lowerarm":    pos(0, -0.5, 0),
		"hand":        pos(0, -0.5, 0),
		"hand_target": pos(0, 0.1, 0.3),
		"elbow_hint":  pos(0, 0.5, 1),
	}))
	require.NoError(t, err)

	params := NewParamTable()
	for _, name := range r.Parameters {
		params.Declare(name)
	}
	job := NewJobData(rig.NewBinding(skel), params)
	return skel, job, params
}

func testSpring(speed float32) spring.VectorConfig {
	return spring.UniformVectorConfig(spring.DefaultConfig(speed, 25))
}

func swaySettings() *SwaySettings {
	return &SwaySettings{
		WeaponBone:     "weapon",
		LookDeltaParam: "lookDelta",
		MoveInputParam: "moveInput",
		AimParam:       "isAiming",
		RecenterSpeed:  5,
		FreeAim: SwayEffect{
			MaxInput:      20,
			PositionScale: [3]float32{0.001, 0.001, 0},
			RotationScale: [3]float32{0.2, 0.2, 0},
			Spring:        testSpring(10),
		},
		Move: SwayEffect{MaxInput: 1, Spring: testSpring(8)},
		Aim:  SwayEffect{MaxInput: 10, Spring: testSpring(12)},
	}
}

func TestLayerWeightEpsilonIsTrueNoOp(t *testing.T) {
	skel, job, params := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l, err := New(swaySettings())
	require.NoError(t, err)
	require.NoError(t, l.Bind(job, swaySettings()))
	require.NoError(t, l.Link(swaySettings()))

	params.SetVec3(params.Index("lookDelta"), mgl32.Vec3{5, 3, 0})

	before := pose.Snapshot()
	l.Prepare(WeightEpsilon/2, frameDt)
	l.Evaluate(pose)
	require.Equal(t, before, pose.Snapshot(), "sub-epsilon weight must leave the buffer bit-identical")
}

func TestLayerInactiveDoesNotEvaluate(t *testing.T) {
	skel, job, params := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l, err := New(swaySettings())
	require.NoError(t, err)
	require.NoError(t, l.Bind(job, swaySettings()))
	// Bound but never linked: full weight must still be forced to zero.

	params.SetVec3(params.Index("lookDelta"), mgl32.Vec3{5, 3, 0})

	before := pose.Snapshot()
	l.Prepare(1, frameDt)
	l.Evaluate(pose)
	require.Equal(t, before, pose.Snapshot())
}

func TestLayerRelinkResetsDynamics(t *testing.T) {
	skel, job, params := testRig(t)
	lookIdx := params.Index("lookDelta")

	bindLinked := func() Layer {
		l, err := New(swaySettings())
		require.NoError(t, err)
		require.NoError(t, l.Bind(job, swaySettings()))
		require.NoError(t, l.Link(swaySettings()))
		return l
	}

	// Accumulate several frames of spring motion in the first layer.
	seasoned := bindLinked()
	params.SetVec3(lookIdx, mgl32.Vec3{4, -2, 0})
	for i := 0; i < 10; i++ {
		scratch := rig.NewPoseBuffer(skel)
		seasoned.Prepare(1, frameDt)
		seasoned.Evaluate(scratch)
	}

	// Relinking must discard every bit of accumulated dynamics: the next
	// frame has to match a freshly bound layer exactly.
	require.NoError(t, seasoned.Link(swaySettings()))
	fresh := bindLinked()

	params.SetVec3(lookIdx, mgl32.Vec3{1, 1, 0})

	poseA := rig.NewPoseBuffer(skel)
	seasoned.Prepare(1, frameDt)
	seasoned.Evaluate(poseA)

	poseB := rig.NewPoseBuffer(skel)
	fresh.Prepare(1, frameDt)
	fresh.Evaluate(poseB)

	require.Equal(t, poseB.Snapshot(), poseA.Snapshot())
}

func TestLayerBindRejectsForeignSettings(t *testing.T) {
	_, job, _ := testRig(t)

	l, err := New(swaySettings())
	require.NoError(t, err)
	err = l.Bind(job, &RecoilSettings{WeaponIKBone: "weapon_ik"})
	require.Error(t, err)
}

func TestLayerUnboundBoneFreezesContribution(t *testing.T) {
	skel, job, _ := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	s := swaySettings()
	s.WeaponBone = "not_a_bone"
	l, err := New(s)
	require.NoError(t, err)
	require.NoError(t, l.Bind(job, s))
	require.NoError(t, l.Link(s))

	before := pose.Snapshot()
	l.Prepare(1, frameDt)
	l.Evaluate(pose)
	require.Equal(t, before, pose.Snapshot(), "a binding miss freezes the bone, never crashes")
}

func TestStackPendingChangesApplyAtFrameBoundary(t *testing.T) {
	skel, job, _ := testRig(t)
	_ = skel

	st := NewStack("test", job)
	offset := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.05, 0}}},
	}}
	require.NoError(t, st.Add("offset", offset, 1))

	// Before any Prepare the add is still pending: evaluation is bind pose.
	st.Evaluate()
	require.InDelta(t, 1.4, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-6)

	st.Prepare(frameDt)
	st.Evaluate()
	require.InDelta(t, 1.45, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-6)

	// Removal also waits for the next frame boundary.
	st.Remove("offset")
	st.Prepare(frameDt)
	st.Evaluate()
	require.InDelta(t, 1.4, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-6)
}

func TestStackDuplicateNameRejected(t *testing.T) {
	_, job, _ := testRig(t)
	st := NewStack("test", job)

	offset := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.05, 0}}},
	}}
	require.NoError(t, st.Add("offset", offset, 1))
	require.Error(t, st.Add("offset", offset, 1))
}

func TestStackWeightFade(t *testing.T) {
	_, job, _ := testRig(t)
	st := NewStack("test", job)

	offset := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.1, 0}}},
	}}
	require.NoError(t, st.Add("offset", offset, 1))
	st.Prepare(frameDt)

	st.Fade("offset", 0, 0.5, ease.Linear)
	st.Prepare(0.25)
	require.InDelta(t, 0.5, st.Weight("offset"), 1e-5)
	st.Evaluate()
	require.InDelta(t, 1.45, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-5)

	st.Prepare(0.25)
	require.InDelta(t, 0, st.Weight("offset"), 1e-5)
}

func TestStackRelink(t *testing.T) {
	_, job, _ := testRig(t)
	st := NewStack("test", job)

	first := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.05, 0}}},
	}}
	second := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.2, 0}}},
	}}
	require.NoError(t, st.Add("offset", first, 1))
	st.Prepare(frameDt)

	// Relinking with a different kind is rejected outright.
	require.Error(t, st.Relink("offset", &AttachSettings{WeaponBone: "weapon", Chain: "arm"}))
	require.Error(t, st.Relink("missing", second))

	require.NoError(t, st.Relink("offset", second))
	st.Prepare(frameDt)
	st.Evaluate()
	require.InDelta(t, 1.6, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-5)
}

func TestSchedulerStepRunsAllPhases(t *testing.T) {
	_, job, _ := testRig(t)
	st := NewStack("test", job)
	offset := &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 0.05, 0}}},
	}}
	require.NoError(t, st.Add("offset", offset, 1))

	sched := NewScheduler(WithWorkers(2), WithStacks(st))
	sched.Step(frameDt)

	require.InDelta(t, 1.45, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-6)

	sched.Unregister("test")
	st.Pose().Reset()
	sched.Step(frameDt)
	require.InDelta(t, 1.4, st.Pose().Component(job.Binding.Resolve("weapon")).Position.Y(), 1e-6)
}

func TestParamTable(t *testing.T) {
	p := NewParamTable()
	i := p.Declare("speed")
	require.Equal(t, i, p.Declare("speed"), "re-declaring returns the same index")
	require.Equal(t, i, p.Index("speed"))
	require.Equal(t, -1, p.Index("missing"))

	p.SetScalar(i, 2.5)
	require.Equal(t, float32(2.5), p.Scalar(i))

	p.SetBool(i, true)
	require.True(t, p.Bool(i))

	p.SetVec3(i, mgl32.Vec3{1, 2, 3})
	require.Equal(t, mgl32.Vec3{1, 2, 3}, p.Vec3(i))

	// Out-of-range reads are zero values, never panics.
	require.Equal(t, float32(0), p.Scalar(-1))
	require.False(t, p.Bool(99))
	require.Equal(t, mgl32.Vec3{}, p.Vec3(-1))
}
