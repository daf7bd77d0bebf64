package rig

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/common"
)

// Transform represents a decomposed bone transform: position, rotation
// (unit quaternion), and per-axis scale. It is a plain value type; all
// operations return new values and never mutate their receiver.
type Transform struct {
	// Position is the translation component.
	Position mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis (usually unit).
	Scale mgl32.Vec3
}

// IdentityTransform returns the identity transform: zero position, identity
// rotation, unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// RelativeTo expresses other in this transform's frame, assuming both are
// given in a common ambient frame. The result rel satisfies
// t.WorldFrom(rel, ignoreScale) == other within floating-point tolerance.
//
// Parameters:
//   - other: the transform to re-express, in the same ambient frame as t
//   - ignoreScale: when true, t's scale is not divided out of the result
//     (skeletal blending conventionally ignores non-uniform scale)
//
// Returns:
//   - Transform: other expressed relative to t
func (t Transform) RelativeTo(other Transform, ignoreScale bool) Transform {
	inv := t.Rotation.Inverse()
	rel := Transform{
		Rotation: inv.Mul(other.Rotation).Normalize(),
	}
	p := inv.Rotate(other.Position.Sub(t.Position))
	if ignoreScale {
		rel.Position = p
		rel.Scale = other.Scale
	} else {
		rel.Position = mgl32.Vec3{
			p.X() / nonZero(t.Scale.X()),
			p.Y() / nonZero(t.Scale.Y()),
			p.Z() / nonZero(t.Scale.Z()),
		}
		rel.Scale = mgl32.Vec3{
			other.Scale.X() / nonZero(t.Scale.X()),
			other.Scale.Y() / nonZero(t.Scale.Y()),
			other.Scale.Z() / nonZero(t.Scale.Z()),
		}
	}
	return rel
}

// WorldFrom composes a relative transform back into the ambient frame.
// It is the inverse of RelativeTo with the same ignoreScale flag.
//
// Parameters:
//   - rel: a transform expressed relative to t
//   - ignoreScale: when true, t's scale is not applied to rel's position
//
// Returns:
//   - Transform: rel expressed in t's ambient frame
func (t Transform) WorldFrom(rel Transform, ignoreScale bool) Transform {
	out := Transform{
		Rotation: t.Rotation.Mul(rel.Rotation).Normalize(),
	}
	p := rel.Position
	if !ignoreScale {
		p = mgl32.Vec3{
			p.X() * t.Scale.X(),
			p.Y() * t.Scale.Y(),
			p.Z() * t.Scale.Z(),
		}
	}
	out.Position = t.Position.Add(t.Rotation.Rotate(p))
	if ignoreScale {
		out.Scale = rel.Scale
	} else {
		out.Scale = mgl32.Vec3{
			rel.Scale.X() * t.Scale.X(),
			rel.Scale.Y() * t.Scale.Y(),
			rel.Scale.Z() * t.Scale.Z(),
		}
	}
	return out
}

// Lerp interpolates between t and other by alpha. Position and scale are
// interpolated linearly; rotation uses shortest-path slerp.
//
// Parameters:
//   - other: the target transform
//   - alpha: the interpolation factor in [0, 1]
//
// Returns:
//   - Transform: the interpolated transform
func (t Transform) Lerp(other Transform, alpha float32) Transform {
	return Transform{
		Position: lerpVec3(t.Position, other.Position, alpha),
		Rotation: common.SlerpShortest(t.Rotation, other.Rotation, alpha),
		Scale:    lerpVec3(t.Scale, other.Scale, alpha),
	}
}

// Mat4 builds the 4x4 column-major matrix for this transform in TRS order
// (translate, then rotate, then scale).
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func (t Transform) Mat4() mgl32.Mat4 {
	m := t.Rotation.Mat4()
	// Scale the rotation columns, then set the translation column.
	for c := 0; c < 3; c++ {
		s := t.Scale[c]
		m[c*4+0] *= s
		m[c*4+1] *= s
		m[c*4+2] *= s
	}
	m[12], m[13], m[14] = t.Position.X(), t.Position.Y(), t.Position.Z()
	return m
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		common.Lerp(a.X(), b.X(), t),
		common.Lerp(a.Y(), b.Y(), t),
		common.Lerp(a.Z(), b.Z(), t),
	}
}

// nonZero guards scale division against degenerate zero components.
func nonZero(v float32) float32 {
	if v > -common.Epsilon && v < common.Epsilon {
		return 1
	}
	return v
}
