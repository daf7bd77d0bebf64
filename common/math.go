package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the tolerance used for degenerate-geometry checks throughout the
// animation core (zero-length directions, coincident points).
const Epsilon = 1e-6

// Clamp constrains v to the inclusive range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - float32: v clamped to [lo, hi]
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp linearly interpolates between a and b by t. t is not clamped.
//
// Parameters:
//   - a: the start value
//   - b: the end value
//   - t: the interpolation factor
//
// Returns:
//   - float32: the interpolated value
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// SlerpShortest spherically interpolates between two quaternions along the
// shortest arc. mgl32.QuatSlerp interpolates along the raw arc between its
// inputs, which swings the long way around when the quaternions lie in
// opposite hemispheres; this wrapper negates b first when dot(a, b) < 0.
//
// Parameters:
//   - a: the start rotation
//   - b: the end rotation
//   - t: the interpolation factor in [0, 1]
//
// Returns:
//   - mgl32.Quat: the shortest-path interpolated rotation
func SlerpShortest(a, b mgl32.Quat, t float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = mgl32.Quat{W: -b.W, V: b.V.Mul(-1)}
	}
	return mgl32.QuatSlerp(a, b, t)
}

// SafeNormalize normalizes v, reporting whether the input had usable length.
// Vectors shorter than Epsilon normalize to the zero vector with ok=false
// instead of producing NaN components.
//
// Parameters:
//   - v: the vector to normalize
//
// Returns:
//   - mgl32.Vec3: the unit vector, or the zero vector when degenerate
//   - bool: false if v was too short to normalize
func SafeNormalize(v mgl32.Vec3) (mgl32.Vec3, bool) {
	l := v.Len()
	if l < Epsilon {
		return mgl32.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// DecayFactor computes the per-frame blend factor for an exponential decay
// toward a target at the given rate, independent of frame rate:
// factor = 1 - e^(-speed*dt).
//
// Parameters:
//   - speed: the decay rate in 1/seconds (higher converges faster)
//   - dt: the frame delta time in seconds
//
// Returns:
//   - float32: the blend factor in [0, 1)
func DecayFactor(speed, dt float32) float32 {
	return 1 - float32(math.Exp(float64(-speed*dt)))
}
