// Package ik provides the analytic two-bone inverse-kinematics solver used by
// the limb layers. The solve is exact for reachable targets: the two link
// lengths measured from the incoming pose are preserved bit-for-bit in the
// constructed result, and unreachable targets clamp to the fully extended
// chain instead of extrapolating.
package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// Weights controls how strongly each part of the solve is blended over the
// incoming pose.
type Weights struct {
	// Position blends the solved mid/tip positions over the current ones.
	Position float32

	// Rotation blends the solved root/mid/tip rotations over the current ones.
	Rotation float32

	// Hint biases the bend plane toward the hint's direction.
	Hint float32

	// HasValidHint gates the hint bias entirely.
	HasValidHint bool
}

// FullWeights returns weights that apply the solve completely, hint included.
//
// Returns:
//   - Weights: position, rotation, and hint weights of 1 with a valid hint
func FullWeights() Weights {
	return Weights{Position: 1, Rotation: 1, Hint: 1, HasValidHint: true}
}

// Solve runs the analytic two-bone solve in place on root, mid, and tip,
// which must share a common ambient frame with target and hint. The link
// lengths are measured from the incoming transforms; the root-to-target
// distance is clamped to their sum, the mid bend angle comes from the law of
// cosines, and the bend plane is biased toward the hint when one is valid.
// Solved positions and rotations are blended over the incoming pose by the
// respective weights.
//
// Degenerate inputs early-return without touching the pose: a tip already
// coincident with the target, a target on top of the root, or a chain with a
// zero-length link.
//
// Parameters:
//   - root: the chain root transform, updated in place
//   - mid: the middle joint transform, updated in place
//   - tip: the end effector transform, updated in place
//   - target: the transform the tip should reach
//   - hint: the pole transform the bend plane is biased toward
//   - w: the blend weights
func Solve(root, mid, tip *rig.Transform, target, hint rig.Transform, w Weights) {
	if target.Position.Sub(tip.Position).Len() < common.Epsilon {
		return
	}

	upper := mid.Position.Sub(root.Position)
	lower := tip.Position.Sub(mid.Position)
	lenUpper := upper.Len()
	lenLower := lower.Len()
	if lenUpper < common.Epsilon || lenLower < common.Epsilon {
		return
	}

	toTarget := target.Position.Sub(root.Position)
	reach := toTarget.Len()
	if reach < common.Epsilon {
		return
	}

	maxReach := lenUpper + lenLower
	if reach > maxReach {
		reach = maxReach
	}
	if min := float32(math.Abs(float64(lenUpper - lenLower))); reach < min {
		reach = min
	}

	dir := toTarget.Mul(1 / toTarget.Len())
	bendDir, ok := bendDirection(dir, upper, hint.Position.Sub(root.Position), w)
	if !ok {
		return
	}

	// Law of cosines at the root: angle between the aim direction and the
	// upper link for the clamped reach.
	cosRoot := (lenUpper*lenUpper + reach*reach - lenLower*lenLower) / (2 * lenUpper * reach)
	cosRoot = common.Clamp(cosRoot, -1, 1)
	sinRoot := float32(math.Sqrt(float64(1 - cosRoot*cosRoot)))

	solvedMidPos := root.Position.
		Add(dir.Mul(lenUpper * cosRoot)).
		Add(bendDir.Mul(lenUpper * sinRoot))
	solvedTipPos := root.Position.Add(dir.Mul(reach))

	solvedRootRot := rotateOnto(root.Rotation, upper, solvedMidPos.Sub(root.Position))
	solvedMidRot := rotateOnto(mid.Rotation, lower, solvedTipPos.Sub(solvedMidPos))

	root.Rotation = common.SlerpShortest(root.Rotation, solvedRootRot, w.Rotation)
	mid.Position = lerpVec3(mid.Position, solvedMidPos, w.Position)
	mid.Rotation = common.SlerpShortest(mid.Rotation, solvedMidRot, w.Rotation)
	tip.Position = lerpVec3(tip.Position, solvedTipPos, w.Position)
	tip.Rotation = common.SlerpShortest(tip.Rotation, target.Rotation, w.Rotation)
}

// bendDirection picks the unit direction, perpendicular to the aim direction,
// that the mid joint is displaced along. The current pose's bend is the
// baseline; a valid hint pulls it toward the hint's perpendicular by the hint
// weight. Returns ok=false only when no usable perpendicular exists at all.
func bendDirection(dir, upper, toHint mgl32.Vec3, w Weights) (mgl32.Vec3, bool) {
	curPerp := upper.Sub(dir.Mul(upper.Dot(dir)))
	curBend, curOK := common.SafeNormalize(curPerp)

	hintPerp := toHint.Sub(dir.Mul(toHint.Dot(dir)))
	hintBend, hintOK := common.SafeNormalize(hintPerp)
	if !w.HasValidHint {
		hintOK = false
	}

	switch {
	case curOK && hintOK:
		blended := lerpVec3(curBend, hintBend, common.Clamp(w.Hint, 0, 1))
		if n, ok := common.SafeNormalize(blended); ok {
			return n, true
		}
		return hintBend, true
	case curOK:
		return curBend, true
	case hintOK:
		return hintBend, true
	}

	// Chain fully extended along dir with no hint: any perpendicular works.
	perp := dir.Cross(mgl32.Vec3{0, 1, 0})
	if n, ok := common.SafeNormalize(perp); ok {
		return n, true
	}
	n, ok := common.SafeNormalize(dir.Cross(mgl32.Vec3{1, 0, 0}))
	return n, ok
}

// rotateOnto applies to rot the shortest rotation that carries the from
// direction onto the to direction. Degenerate directions leave rot unchanged.
func rotateOnto(rot mgl32.Quat, from, to mgl32.Vec3) mgl32.Quat {
	f, okF := common.SafeNormalize(from)
	t, okT := common.SafeNormalize(to)
	if !okF || !okT {
		return rot
	}
	return mgl32.QuatBetweenVectors(f, t).Mul(rot).Normalize()
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
