package spring

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestStepZeroSpeedHoldsValue(t *testing.T) {
	tests := []struct {
		name    string
		current float32
		target  float32
	}{
		{"at rest", 0, 0},
		{"below target", 0.25, 1},
		{"above target", 3, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Speed: 0, DampingRatio: 1, Stiffness: 25, Scale: 1}
			state := State{Velocity: 5, PrevError: 2}
			got := Step(tt.current, tt.target, cfg, &state, 1.0/60)
			if got != tt.current {
				t.Fatalf("Step() = %v, want %v unchanged", got, tt.current)
			}
			if state.Velocity != 5 || state.PrevError != 2 {
				t.Fatalf("zero-speed step mutated state: %+v", state)
			}
		})
	}
}

func TestStepConvergence(t *testing.T) {
	cfg := Config{Speed: 10, DampingRatio: 1, Stiffness: 25, Scale: 1}
	state := State{}
	dt := float32(1.0 / 60)

	cur := Step(0, 1, cfg, &state, dt)
	if cur <= 0 || cur >= 1 {
		t.Fatalf("first step = %v, want strictly between 0 and 1", cur)
	}

	for i := 1; i < 120; i++ {
		cur = Step(cur, 1, cfg, &state, dt)
		if math.IsNaN(float64(cur)) {
			t.Fatalf("step %d produced NaN", i)
		}
	}
	if diff := math.Abs(float64(cur - 1)); diff > 1e-3 {
		t.Fatalf("after 120 steps value = %v, want within 1e-3 of 1", cur)
	}
}

func TestStepInterpSpeedClamp(t *testing.T) {
	// dt*speed far above 1 must behave identically to interpSpeed == 1.
	cfg := Config{Speed: 1000, DampingRatio: 1, Stiffness: 25, Scale: 1}
	a, b := State{}, State{}

	fast := Step(0, 1, cfg, &a, 10)
	unit := Step(0, 1, Config{Speed: 1, DampingRatio: 1, Stiffness: 25, Scale: 1}, &b, 1)
	if fast != unit {
		t.Fatalf("clamped step = %v, want %v", fast, unit)
	}
}

func TestStepScale(t *testing.T) {
	cfg := Config{Speed: 10, DampingRatio: 1, Stiffness: 25, Scale: 2}
	state := State{}
	dt := float32(1.0 / 60)

	cur := float32(0)
	for i := 0; i < 300; i++ {
		cur = Step(cur, 1, cfg, &state, dt)
	}
	if diff := math.Abs(float64(cur - 2)); diff > 1e-3 {
		t.Fatalf("scaled spring settled at %v, want 2", cur)
	}
}

func TestStateReset(t *testing.T) {
	state := State{Velocity: 3, PrevError: -1}
	state.Reset()
	if state.Velocity != 0 || state.PrevError != 0 {
		t.Fatalf("Reset() left state %+v", state)
	}

	vec := VectorState{
		X: State{Velocity: 1, PrevError: 1},
		Y: State{Velocity: 2, PrevError: 2},
		Z: State{Velocity: 3, PrevError: 3},
	}
	vec.Reset()
	if vec.X != (State{}) || vec.Y != (State{}) || vec.Z != (State{}) {
		t.Fatalf("vector Reset() left state %+v", vec)
	}
}

func TestStepVecIndependentAxes(t *testing.T) {
	cfg := UniformVectorConfig(Config{Speed: 10, DampingRatio: 1, Stiffness: 25, Scale: 1})
	vecState := VectorState{}
	scalarState := State{}
	dt := float32(1.0 / 60)

	// The Y axis of the vector spring must match a scalar spring fed the same
	// channel, and untouched axes must stay at zero.
	vec := mgl32.Vec3{}
	scalar := float32(0)
	for i := 0; i < 30; i++ {
		vec = StepVec(vec, mgl32.Vec3{0, 1, 0}, cfg, &vecState, dt)
		scalar = Step(scalar, 1, cfg.Y, &scalarState, dt)
	}
	if vec.Y() != scalar {
		t.Fatalf("vector Y = %v, scalar = %v, want identical", vec.Y(), scalar)
	}
	if vec.X() != 0 || vec.Z() != 0 {
		t.Fatalf("idle axes moved: %v", vec)
	}
}
