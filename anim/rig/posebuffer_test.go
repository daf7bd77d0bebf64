package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// twoBoneSkeleton builds root -> bone with the bone bound at (0,1,0), plus a
// child leaf under the bone for keep-children checks.
func twoBoneSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	r := &Rig{Elements: []Element{
		{Name: "root", Index: 0, Depth: 0},
		{Name: "bone", Index: 1, Depth: 1},
		{Name: "leaf", Index: 2, Depth: 2},
	}}
	bone := IdentityTransform()
	bone.Position = mgl32.Vec3{0, 1, 0}
	leaf := IdentityTransform()
	leaf.Position = mgl32.Vec3{0, 0.5, 0}

	skel, err := NewSkeleton(r, WithBindPose(map[string]Transform{
		"bone": bone,
		"leaf": leaf,
	}))
	require.NoError(t, err)
	return skel
}

func TestPoseBufferApplyAddLocal(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	b := NewBinding(skel)
	h := b.Resolve("bone")

	p := IdentityPose()
	p.Transform.Position = mgl32.Vec3{0, 0.05, 0}
	pose.Apply(h, p, 1)

	got := pose.Local(h).Position
	require.InDelta(t, 0, got.X(), 1e-6)
	require.InDelta(t, 1.05, got.Y(), 1e-6)
	require.InDelta(t, 0, got.Z(), 1e-6)
}

func TestPoseBufferApplyAddWeightScales(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")

	p := IdentityPose()
	p.Transform.Position = mgl32.Vec3{0, 0.1, 0}
	pose.Apply(h, p, 0.5)

	require.InDelta(t, 1.05, pose.Local(h).Position.Y(), 1e-6)
}

func TestPoseBufferApplyOverride(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")

	p := IdentityPose()
	p.Mode = ModifyOverride
	p.Transform.Position = mgl32.Vec3{2, 3, 0}

	pose.Apply(h, p, 1)
	require.True(t, approxVec3(pose.Local(h).Position, mgl32.Vec3{2, 3, 0}, 1e-6))

	// Half weight blends halfway from the current transform.
	pose.Reset()
	pose.Apply(h, p, 0.5)
	require.True(t, approxVec3(pose.Local(h).Position, mgl32.Vec3{1, 2, 0}, 1e-6))
}

func TestPoseBufferComponentSpace(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	b := NewBinding(skel)
	bone := b.Resolve("bone")
	leaf := b.Resolve("leaf")

	// Component transforms chain through parents.
	require.True(t, approxVec3(pose.Component(bone).Position, mgl32.Vec3{0, 1, 0}, 1e-6))
	require.True(t, approxVec3(pose.Component(leaf).Position, mgl32.Vec3{0, 1.5, 0}, 1e-6))

	// Writing a component transform re-expresses it locally.
	target := IdentityTransform()
	target.Position = mgl32.Vec3{1, 2, 3}
	pose.SetComponent(leaf, target)
	require.True(t, approxVec3(pose.Component(leaf).Position, mgl32.Vec3{1, 2, 3}, 1e-5))
	require.True(t, approxVec3(pose.Local(leaf).Position, mgl32.Vec3{1, 1, 3}, 1e-5))
}

func TestPoseBufferWorldSpace(t *testing.T) {
	skel := twoBoneSkeleton(t)
	scene := IdentityTransform()
	scene.Position = mgl32.Vec3{10, 0, 0}
	skel.SetSceneTransform(scene)

	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")

	require.True(t, approxVec3(pose.World(h).Position, mgl32.Vec3{10, 1, 0}, 1e-5))

	target := IdentityTransform()
	target.Position = mgl32.Vec3{10, 2, 0}
	pose.SetWorld(h, target)
	require.True(t, approxVec3(pose.Component(h).Position, mgl32.Vec3{0, 2, 0}, 1e-5))
}

func TestPoseBufferApplyKeepChildren(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	b := NewBinding(skel)
	bone := b.Resolve("bone")
	leaf := b.Resolve("leaf")

	before := pose.Component(leaf)

	p := IdentityPose()
	p.Transform.Position = mgl32.Vec3{0.5, 0, 0}
	pose.ApplyKeepChildren(bone, p, 1)

	// The bone moved but the leaf's component transform is preserved.
	require.True(t, approxVec3(pose.Component(bone).Position, mgl32.Vec3{0.5, 1, 0}, 1e-5))
	require.True(t, approxVec3(pose.Component(leaf).Position, before.Position, 1e-5))
}

func TestPoseBufferAddRotationInBoneFrame(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")

	p := IdentityPose()
	p.Transform.Rotation = mgl32.QuatRotate(0.8, mgl32.Vec3{0, 1, 0})
	pose.Apply(h, p, 1)

	got := pose.Local(h).Rotation
	require.True(t, approxQuat(got, p.Transform.Rotation, 1e-5))

	// Position is untouched by a pure rotation delta.
	require.True(t, approxVec3(pose.Local(h).Position, mgl32.Vec3{0, 1, 0}, 1e-6))
}

func TestPoseBufferZeroWeightNoOp(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")
	before := pose.Snapshot()

	p := IdentityPose()
	p.Transform.Position = mgl32.Vec3{5, 5, 5}
	pose.Apply(h, p, 0)

	require.Equal(t, before, pose.Snapshot())
}

func TestPoseBufferSnapshotRestore(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	h := NewBinding(skel).Resolve("bone")

	snap := pose.Snapshot()

	p := IdentityPose()
	p.Transform.Position = mgl32.Vec3{1, 1, 1}
	pose.Apply(h, p, 1)
	require.NotEqual(t, snap, pose.Snapshot())

	pose.Restore(snap)
	require.Equal(t, snap, pose.Snapshot())
}

func TestPoseBufferResetFromLengthMismatch(t *testing.T) {
	skel := twoBoneSkeleton(t)
	pose := NewPoseBuffer(skel)
	require.Error(t, pose.ResetFrom(make([]Transform, 1)))
	require.NoError(t, pose.ResetFrom(make([]Transform, skel.BoneCount())))
}
