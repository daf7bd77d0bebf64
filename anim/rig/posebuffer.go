package rig

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/common"
)

// PoseBuffer is the shared, mutable per-frame joint-transform state being
// composed. Storage is local-to-parent; component- and world-space views are
// derived on demand by walking the parent chain, so a mutation through any
// space is immediately visible to later readers in every space.
//
// A PoseBuffer is owned by exactly one evaluation sequence per frame. Layers
// mutate it strictly in stack order; the host's phase barrier is the only
// synchronization.
type PoseBuffer struct {
	skel  *Skeleton
	local []Transform
}

// NewPoseBuffer creates a pose buffer for a skeleton instance, initialized to
// the skeleton's bind pose.
//
// Parameters:
//   - skel: the skeleton instance this buffer composes
//
// Returns:
//   - *PoseBuffer: the new pose buffer
func NewPoseBuffer(skel *Skeleton) *PoseBuffer {
	p := &PoseBuffer{
		skel:  skel,
		local: make([]Transform, skel.BoneCount()),
	}
	p.Reset()
	return p
}

// Skeleton returns the skeleton instance this buffer composes.
func (p *PoseBuffer) Skeleton() *Skeleton {
	return p.skel
}

// Reset restores the buffer to the skeleton's bind pose. Call at the start of
// a frame when no externally animated base pose is supplied.
func (p *PoseBuffer) Reset() {
	for i := range p.local {
		p.local[i] = p.skel.BindLocal(int32(i))
	}
}

// ResetFrom restores the buffer from an externally animated base pose in
// local-to-parent space, one transform per bone in index order.
//
// Parameters:
//   - base: the baseline animated local transforms
//
// Returns:
//   - error: error if the slice length does not match the bone count
func (p *PoseBuffer) ResetFrom(base []Transform) error {
	if len(base) != len(p.local) {
		return fmt.Errorf("pose buffer: base pose has %d transforms, skeleton has %d bones", len(base), len(p.local))
	}
	copy(p.local, base)
	return nil
}

// Snapshot returns a copy of the buffer's local transforms.
//
// Returns:
//   - []Transform: a newly allocated copy of the local pose
func (p *PoseBuffer) Snapshot() []Transform {
	snap := make([]Transform, len(p.local))
	copy(snap, p.local)
	return snap
}

// Restore overwrites the buffer's local transforms from a snapshot.
//
// Parameters:
//   - snap: a snapshot previously taken from a buffer of the same skeleton
func (p *PoseBuffer) Restore(snap []Transform) {
	copy(p.local, snap)
}

// Local returns the local-to-parent transform of the bone behind h.
// Invalid handles return the identity transform.
func (p *PoseBuffer) Local(h Handle) Transform {
	if !h.Valid() {
		return IdentityTransform()
	}
	return p.local[h.index]
}

// SetLocal sets the local-to-parent transform of the bone behind h.
// No-op for invalid handles.
func (p *PoseBuffer) SetLocal(h Handle, t Transform) {
	if !h.Valid() {
		return
	}
	p.local[h.index] = t
}

// Component returns the component-space (root-relative) transform of the bone
// behind h, composed from the current local transforms up the parent chain.
// Invalid handles return the identity transform.
func (p *PoseBuffer) Component(h Handle) Transform {
	if !h.Valid() {
		return IdentityTransform()
	}
	return p.ComponentAt(h.index)
}

// ComponentAt returns the component-space transform of the bone at index i.
//
// Parameters:
//   - i: the bone index
//
// Returns:
//   - Transform: the component-space transform
func (p *PoseBuffer) ComponentAt(i int32) Transform {
	parent := p.skel.Parent(i)
	if parent < 0 {
		return p.local[i]
	}
	return p.ComponentAt(parent).WorldFrom(p.local[i], false)
}

// SetComponent sets the bone behind h so that its component-space transform
// equals t, re-expressing t through the parent's current component transform.
// No-op for invalid handles.
func (p *PoseBuffer) SetComponent(h Handle, t Transform) {
	if !h.Valid() {
		return
	}
	parent := p.skel.Parent(h.index)
	if parent < 0 {
		p.local[h.index] = t
		return
	}
	p.local[h.index] = p.ComponentAt(parent).RelativeTo(t, false)
}

// World returns the world-space transform of the bone behind h, resolved
// through the skeleton owner's scene transform.
func (p *PoseBuffer) World(h Handle) Transform {
	return p.skel.SceneTransform().WorldFrom(p.Component(h), false)
}

// SetWorld sets the bone behind h so that its world-space transform equals t.
// No-op for invalid handles.
func (p *PoseBuffer) SetWorld(h Handle, t Transform) {
	if !h.Valid() {
		return
	}
	p.SetComponent(h, p.skel.SceneTransform().RelativeTo(t, false))
}

// Apply combines an authored pose with the bone's current transform, scaled by
// weight. Add composes the pose as a delta in the pose's space: position and
// scale offsets are applied along that space's axes and the rotation delta is
// applied in the bone's own frame. Override blends the current transform
// toward the authored one. Weights at or below zero leave the buffer
// untouched.
//
// Parameters:
//   - h: the bone to modify
//   - pose: the authored pose (transform + space + mode)
//   - weight: the blend factor in [0, 1]
func (p *PoseBuffer) Apply(h Handle, pose Pose, weight float32) {
	if !h.Valid() || weight <= 0 {
		return
	}
	if weight > 1 {
		weight = 1
	}

	switch pose.Space {
	case SpaceLocal:
		p.SetLocal(h, combine(p.Local(h), pose, weight))
	case SpaceComponent:
		p.SetComponent(h, combine(p.Component(h), pose, weight))
	case SpaceWorld:
		p.SetWorld(h, combine(p.World(h), pose, weight))
	}
}

// ApplyKeepChildren applies a pose like Apply but preserves the component-space
// transforms of the bone's direct children, so descendants are not dragged
// along by the modification.
//
// Parameters:
//   - h: the bone to modify
//   - pose: the authored pose
//   - weight: the blend factor in [0, 1]
func (p *PoseBuffer) ApplyKeepChildren(h Handle, pose Pose, weight float32) {
	if !h.Valid() || weight <= 0 {
		return
	}

	children := p.skel.Children(h.index)
	kept := make([]Transform, len(children))
	for i, c := range children {
		kept[i] = p.ComponentAt(c)
	}

	p.Apply(h, pose, weight)

	for i, c := range children {
		p.SetComponent(Handle{index: c}, kept[i])
	}
}

// combine applies one pose to a current transform expressed in the pose's space.
func combine(cur Transform, pose Pose, weight float32) Transform {
	switch pose.Mode {
	case ModifyOverride:
		return cur.Lerp(pose.Transform, weight)
	default: // ModifyAdd
		out := cur
		out.Position = cur.Position.Add(pose.Transform.Position.Mul(weight))
		delta := common.SlerpShortest(mgl32.QuatIdent(), pose.Transform.Rotation, weight)
		out.Rotation = cur.Rotation.Mul(delta).Normalize()
		out.Scale = mgl32.Vec3{
			cur.Scale.X() * common.Lerp(1, pose.Transform.Scale.X(), weight),
			cur.Scale.Y() * common.Lerp(1, pose.Transform.Scale.Y(), weight),
			cur.Scale.Z() * common.Lerp(1, pose.Transform.Scale.Z(), weight),
		}
		return out
	}
}
