package layer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/whosteenie/rigkit/anim/rig"
)

// runFrame drives one full frame of a single layer against a fresh buffer.
func runFrame(l Layer, pose *rig.PoseBuffer, weight float32) {
	l.Prepare(weight, frameDt)
	l.Evaluate(pose)
	l.PostEvaluate()
}

func boundLayer(t *testing.T, job *JobData, s Settings) Layer {
	t.Helper()
	l, err := New(s)
	require.NoError(t, err)
	require.NoError(t, l.Bind(job, s))
	require.NoError(t, l.Link(s))
	return l
}

func TestPoseOffsetShiftsBoneLocally(t *testing.T) {
	skel, job, _ := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &PoseOffsetSettings{Entries: []PoseOffsetEntry{
		{Bone: "upperarm", Pose: PoseSpec{Position: [3]float32{0, 0.05, 0}}},
	}})
	runFrame(l, pose, 1)

	// The bone rests at (0,1,0); the additive local offset lands it at 1.05.
	got := pose.Local(job.Binding.Resolve("upperarm")).Position
	require.InDelta(t, 1.05, got.Y(), 1e-6)
	require.InDelta(t, 0, got.X(), 1e-6)
}

func TestViewAlignOverridesPose(t *testing.T) {
	skel, job, _ := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &ViewAlignSettings{Entries: []ViewAlignEntry{
		{Bone: "weapon", Pose: PoseSpec{Position: [3]float32{0, 1.2, 0.25}}},
	}})
	runFrame(l, pose, 1)

	// Alignment overrides regardless of the entry's mode tag: the bind
	// position is replaced, not offset.
	got := pose.Local(job.Binding.Resolve("weapon")).Position
	require.InDelta(t, 0, got.X(), 1e-5)
	require.InDelta(t, 1.2, got.Y(), 1e-5)
	require.InDelta(t, 0.25, got.Z(), 1e-5)
}

func TestRecoilAdditiveKick(t *testing.T) {
	skel, job, params := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &RecoilSettings{
		WeaponIKBone:        "weapon_ik",
		MotionBone:          "weapon",
		RecoilPositionParam: "recoilPos",
		RecoilRotationParam: "recoilRot",
		MotionDecaySpeed:    8,
	})
	params.SetVec3(params.Index("recoilPos"), mgl32.Vec3{0, 0, -0.05})
	runFrame(l, pose, 1)

	// The IK bone takes the raw kick; bind local z is 0.1.
	got := pose.Local(job.Binding.Resolve("weapon_ik")).Position
	require.InDelta(t, 0.05, got.Z(), 1e-5)

	// The motion bone only follows part of the way on the first frame.
	follow := pose.Local(job.Binding.Resolve("weapon")).Position.Z() - 0.3
	require.Less(t, follow, float32(0))
	require.Greater(t, follow, float32(-0.05))
}

func TestLimbIKReachesTargetBone(t *testing.T) {
	skel, job, _ := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &LimbIKSettings{
		RootBone:       "upperarm",
		MidBone:        "lowerarm",
		TipBone:        "hand",
		TargetBone:     "hand_target",
		HintBone:       "elbow_hint",
		PositionWeight: 1,
		HintWeight:     1,
	})
	runFrame(l, pose, 1)

	b := job.Binding
	target := pose.Component(b.Resolve("hand_target")).Position
	tip := pose.Component(b.Resolve("hand")).Position
	require.InDelta(t, 0, tip.Sub(target).Len(), 2e-3)

	// The elbow bends toward the hint on +Z.
	require.Greater(t, pose.Component(b.Resolve("lowerarm")).Position.Z(), float32(0))

	// Link lengths survive the solve.
	upper := pose.Component(b.Resolve("lowerarm")).Position.
		Sub(pose.Component(b.Resolve("upperarm")).Position).Len()
	require.InDelta(t, 0.5, upper, 1e-4)
}

func TestAttachChainFollowsWeapon(t *testing.T) {
	skel, job, _ := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &AttachSettings{WeaponBone: "weapon", Chain: "arm"})

	// First frame bakes the chain's pose relative to the weapon.
	runFrame(l, pose, 1)
	hand := job.Binding.Resolve("hand")
	base := pose.Component(hand).Position

	// Move the weapon and re-run: the whole chain is carried along rigidly.
	pose.Reset()
	w := job.Binding.Resolve("weapon")
	tr := pose.Local(w)
	tr.Position = tr.Position.Add(mgl32.Vec3{0, 0.2, 0})
	pose.SetLocal(w, tr)

	runFrame(l, pose, 1)
	got := pose.Component(hand).Position
	require.InDelta(t, 0, got.Sub(base.Add(mgl32.Vec3{0, 0.2, 0})).Len(), 1e-4)
}

func TestLookTurnDistributesRotation(t *testing.T) {
	skel, job, params := testRig(t)
	pose := rig.NewPoseBuffer(skel)

	l := boundLayer(t, job, &LookTurnSettings{
		Chain:           "spine_chain",
		LookParam:       "lookYaw",
		NegativeExtreme: [3]float32{0, -40, 0},
		PositiveExtreme: [3]float32{0, 40, 0},
	})

	// 45 degrees of look is half the reference; split across two chain
	// elements each contributes a quarter of the 40 degree extreme.
	params.SetScalar(params.Index("lookYaw"), 45)
	runFrame(l, pose, 1)

	b := job.Binding
	pelvisWant := mgl32.QuatRotate(mgl32.DegToRad(10), mgl32.Vec3{0, 1, 0})
	spineWant := mgl32.QuatRotate(mgl32.DegToRad(20), mgl32.Vec3{0, 1, 0})
	require.True(t, approxLayerQuat(pose.Component(b.Resolve("pelvis")).Rotation, pelvisWant, 1e-4))
	require.True(t, approxLayerQuat(pose.Component(b.Resolve("spine")).Rotation, spineWant, 1e-4))

	// Zero look input contributes nothing at all.
	pose.Reset()
	before := pose.Snapshot()
	params.SetScalar(params.Index("lookYaw"), 0)
	runFrame(l, pose, 1)
	require.Equal(t, before, pose.Snapshot())
}

func TestPoseSamplerBlendsLanes(t *testing.T) {
	skel, job, params := testRig(t)

	settings := &PoseSamplerSettings{
		WeaponBone: "weapon",
		LeftPose:   PoseSpec{Position: [3]float32{-0.1, 0, 0}},
		RightPose:  PoseSpec{Position: [3]float32{0.1, 0, 0}},
		LaneParam:  "lane",
	}
	l := boundLayer(t, job, settings)
	w := job.Binding.Resolve("weapon")
	laneIdx := params.Index("lane")

	// Halfway into the right lane: half the right pose's offset.
	params.SetScalar(laneIdx, 0.5)
	pose := rig.NewPoseBuffer(skel)
	runFrame(l, pose, 1)
	require.InDelta(t, 0.15, pose.Local(w).Position.X(), 1e-5)

	// Full left lane.
	params.SetScalar(laneIdx, -1)
	pose = rig.NewPoseBuffer(skel)
	runFrame(l, pose, 1)
	require.InDelta(t, 0, pose.Local(w).Position.X(), 1e-5)

	// Neutral lane is a no-op offset.
	params.SetScalar(laneIdx, 0)
	pose = rig.NewPoseBuffer(skel)
	runFrame(l, pose, 1)
	require.InDelta(t, 0.1, pose.Local(w).Position.X(), 1e-5)
}

func TestCollisionReactionBuildsAndDecays(t *testing.T) {
	skel, job, _ := testRig(t)

	settings := &CollisionReactionSettings{
		WeaponBone:      "weapon",
		ProbeLength:     0.5,
		SmoothingSpeed:  10,
		BlockedPoseLow:  PoseSpec{Rotation: [3]float32{-15, 0, 0}},
		BlockedPoseHigh: PoseSpec{Rotation: [3]float32{-30, 0, 0}},
		SelectParam:     "stance",
	}
	l := boundLayer(t, job, settings)
	cl := l.(*collisionLayer)

	// Obstruction at 0.1 of the 0.5 probe: normalized depth 0.8.
	job.Ray = func(origin, dir mgl32.Vec3, maxDist float32) (bool, float32) {
		return true, 0.1
	}

	for i := 0; i < 60; i++ {
		pose := rig.NewPoseBuffer(skel)
		runFrame(l, pose, 1)
	}
	require.InDelta(t, 0.8, cl.penetration, 0.05)

	// The obstruction clears: the reaction decays smoothly, never jumping.
	job.Ray = func(origin, dir mgl32.Vec3, maxDist float32) (bool, float32) {
		return false, 0
	}

	// Consume the stale hit from last frame's cast, then decay begins.
	pose := rig.NewPoseBuffer(skel)
	runFrame(l, pose, 1)
	prev := cl.penetration
	for i := 0; i < 10; i++ {
		pose = rig.NewPoseBuffer(skel)
		runFrame(l, pose, 1)
		require.Less(t, cl.penetration, prev)
		require.Greater(t, cl.penetration, float32(0))
		prev = cl.penetration
	}

	for i := 0; i < 300; i++ {
		pose = rig.NewPoseBuffer(skel)
		runFrame(l, pose, 1)
	}
	require.Less(t, cl.penetration, float32(0.01))
}

func TestCollisionReactionNilRayNeverHits(t *testing.T) {
	skel, job, _ := testRig(t)

	l := boundLayer(t, job, &CollisionReactionSettings{
		WeaponBone:     "weapon",
		ProbeLength:    0.5,
		SmoothingSpeed: 10,
	})
	job.Ray = nil

	for i := 0; i < 5; i++ {
		pose := rig.NewPoseBuffer(skel)
		before := pose.Snapshot()
		runFrame(l, pose, 1)
		require.Equal(t, before, pose.Snapshot())
	}
}

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle([]byte(`
layers:
  - kind: view_align
    entries:
      - bone: weapon
        pose: { position: [0, 1.2, 0.25] }
  - kind: pose_offset
    entries:
      - bone: upperarm
        pose: { position: [0, 0.05, 0], mode: add }
`))
	require.NoError(t, err)
	require.Len(t, b.Layers, 2)
	require.Equal(t, KindViewAlign, b.Layers[0].Kind())
	require.Equal(t, KindPoseOffset, b.Layers[1].Kind())

	po := b.Layers[1].(*PoseOffsetSettings)
	require.Equal(t, "upperarm", po.Entries[0].Bone)
	require.Equal(t, float32(0.05), po.Entries[0].Pose.Position[1])
}

func TestParseBundleRejectsBadInput(t *testing.T) {
	_, err := ParseBundle([]byte("layers:\n  - kind: warp_drive\n"))
	require.Error(t, err)

	// A known kind with invalid settings fails validation.
	_, err = ParseBundle([]byte("layers:\n  - kind: pose_offset\n    entries: []\n"))
	require.Error(t, err)

	// A malformed pose space tag is rejected.
	_, err = ParseBundle([]byte(`
layers:
  - kind: pose_offset
    entries:
      - bone: weapon
        pose: { position: [0, 0.1, 0], space: screen }
`))
	require.Error(t, err)
}

func approxLayerQuat(a, b mgl32.Quat, tol float32) bool {
	d := a.Dot(b)
	if d < 0 {
		d = -d
	}
	return d >= 1-tol
}
