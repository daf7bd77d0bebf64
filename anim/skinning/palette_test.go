package skinning

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/whosteenie/rigkit/anim/rig"
)

func chainSkeleton(t *testing.T) *rig.Skeleton {
	t.Helper()
	r := &rig.Rig{Elements: []rig.Element{
		{Name: "root", Index: 0, Depth: 0},
		{Name: "bone", Index: 1, Depth: 1},
		{Name: "leaf", Index: 2, Depth: 2},
	}}
	bone := rig.IdentityTransform()
	bone.Position = mgl32.Vec3{0, 1, 0}
	leaf := rig.IdentityTransform()
	leaf.Position = mgl32.Vec3{0, 0.5, 0}

	skel, err := rig.NewSkeleton(r, rig.WithBindPose(map[string]rig.Transform{
		"bone": bone,
		"leaf": leaf,
	}))
	require.NoError(t, err)
	return skel
}

func TestPaletteBindPoseIsIdentity(t *testing.T) {
	skel := chainSkeleton(t)
	p := NewPalette(skel)
	pose := rig.NewPoseBuffer(skel)

	p.Update(pose)
	for i, m := range p.Matrices() {
		require.True(t, m.ApproxEqualThreshold(mgl32.Ident4(), 1e-5),
			"bone %d skinning matrix must be identity at bind pose", i)
	}
}

func TestPaletteTranslationPropagates(t *testing.T) {
	skel := chainSkeleton(t)
	p := NewPalette(skel)
	pose := rig.NewPoseBuffer(skel)
	b := rig.NewBinding(skel)

	// Move the middle bone up by 0.25: its matrix and its child's both become
	// a pure translation of the same amount.
	h := b.Resolve("bone")
	tr := pose.Local(h)
	tr.Position = tr.Position.Add(mgl32.Vec3{0, 0.25, 0})
	pose.SetLocal(h, tr)
	p.Update(pose)

	want := mgl32.Translate3D(0, 0.25, 0)
	ms := p.Matrices()
	require.True(t, ms[0].ApproxEqualThreshold(mgl32.Ident4(), 1e-5))
	require.True(t, ms[1].ApproxEqualThreshold(want, 1e-5))
	require.True(t, ms[2].ApproxEqualThreshold(want, 1e-5))
}

func TestPaletteDirtyRangeTracksChanges(t *testing.T) {
	skel := chainSkeleton(t)
	p := NewPalette(skel).(*paletteImpl)
	pose := rig.NewPoseBuffer(skel)
	b := rig.NewBinding(skel)

	// A fresh palette uploads everything once.
	p.Stage(nil, 0)
	require.Len(t, p.staged, 1)
	require.Equal(t, uint64(0), p.staged[0].Offset)
	require.Len(t, p.staged[0].Data, 3*matrixBytes)
	p.staged = p.staged[:0]

	// Nothing changed: staging is a no-op.
	p.Update(pose)
	p.Stage(nil, 0)
	require.Empty(t, p.staged)

	// Only the leaf moves: the write covers just that bone, at its offset.
	h := b.Resolve("leaf")
	tr := pose.Local(h)
	tr.Position = tr.Position.Add(mgl32.Vec3{0.1, 0, 0})
	pose.SetLocal(h, tr)
	p.Update(pose)

	p.Stage(nil, 128)
	require.Len(t, p.staged, 1)
	require.Equal(t, uint64(128+2*matrixBytes), p.staged[0].Offset)
	require.Len(t, p.staged[0].Data, matrixBytes)
}
