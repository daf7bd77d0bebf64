// Package spring implements the critically-damped scalar and vector springs
// that smooth every continuously animated channel in the layer system. The
// integrator is a discrete PD-controller-style spring compensated for frame
// rate through an interpolation-speed clamp rather than a fixed timestep;
// layers depend on its exact convergence feel, so the formula and its order
// of operations must not be altered.
package spring

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// State is the persistent dynamics of one scalar spring channel. It must be
// reset whenever the owning layer transitions from inactive to active so
// stale velocity never leaks across activations.
type State struct {
	// Velocity is the accumulated spring velocity.
	Velocity float32

	// PrevError is the error recorded on the previous step, used to derive
	// the damping term.
	PrevError float32
}

// Reset zeroes the spring dynamics.
func (s *State) Reset() {
	s.Velocity = 0
	s.PrevError = 0
}

// Config is the authored tuning of one scalar spring channel.
type Config struct {
	// Speed is the rate at which the spring integrates; zero holds the
	// current value.
	Speed float32 `yaml:"speed"`

	// DampingRatio controls oscillation (1 = critically damped).
	DampingRatio float32 `yaml:"dampingRatio"`

	// Stiffness is the spring constant.
	Stiffness float32 `yaml:"stiffness"`

	// Scale multiplies the target before the error is computed.
	Scale float32 `yaml:"scale"`
}

// DefaultConfig returns a critically damped config with unit scale.
//
// Parameters:
//   - speed: the integration rate
//   - stiffness: the spring constant
//
// Returns:
//   - Config: a critically damped configuration
func DefaultConfig(speed, stiffness float32) Config {
	return Config{
		Speed:        speed,
		DampingRatio: 1,
		Stiffness:    stiffness,
		Scale:        1,
	}
}

// Step advances one scalar spring channel by dt and returns the new value.
// A near-zero speed short-circuits to the current value unchanged, which
// guards the vanishing-interval case instead of integrating toward it.
//
// Parameters:
//   - current: the channel's current value
//   - target: the value the spring converges toward
//   - cfg: the authored spring tuning
//   - state: the channel's persistent dynamics, updated in place
//   - dt: the frame delta time in seconds
//
// Returns:
//   - float32: the channel's new value
func Step(current, target float32, cfg Config, state *State, dt float32) float32 {
	if cfg.Speed > -1e-8 && cfg.Speed < 1e-8 {
		return current
	}

	interpSpeed := dt * cfg.Speed
	if interpSpeed > 1 {
		interpSpeed = 1
	}

	damping := 2 * float32(math.Sqrt(float64(cfg.Stiffness))) * cfg.DampingRatio
	err := target*cfg.Scale - current
	derivative := err - state.PrevError
	state.Velocity += (err*cfg.Stiffness + derivative*damping) * interpSpeed
	state.PrevError = err

	return current + state.Velocity*interpSpeed
}

// VectorState is the persistent dynamics of a three-channel vector spring.
// The axes are fully independent; there is no cross-coupling.
type VectorState struct {
	X, Y, Z State
}

// Reset zeroes all three channels.
func (s *VectorState) Reset() {
	s.X.Reset()
	s.Y.Reset()
	s.Z.Reset()
}

// VectorConfig is the authored tuning of a three-channel vector spring.
type VectorConfig struct {
	X Config `yaml:"x"`
	Y Config `yaml:"y"`
	Z Config `yaml:"z"`
}

// UniformVectorConfig returns a vector config with the same tuning on every axis.
//
// Parameters:
//   - cfg: the per-axis tuning to replicate
//
// Returns:
//   - VectorConfig: the replicated configuration
func UniformVectorConfig(cfg Config) VectorConfig {
	return VectorConfig{X: cfg, Y: cfg, Z: cfg}
}

// StepVec advances all three channels of a vector spring independently.
//
// Parameters:
//   - current: the current vector value
//   - target: the vector the spring converges toward
//   - cfg: the per-axis spring tuning
//   - state: the persistent per-axis dynamics, updated in place
//   - dt: the frame delta time in seconds
//
// Returns:
//   - mgl32.Vec3: the new vector value
func StepVec(current, target mgl32.Vec3, cfg VectorConfig, state *VectorState, dt float32) mgl32.Vec3 {
	return mgl32.Vec3{
		Step(current.X(), target.X(), cfg.X, &state.X, dt),
		Step(current.Y(), target.Y(), cfg.Y, &state.Y, dt),
		Step(current.Z(), target.Z(), cfg.Z, &state.Z, dt),
	}
}
