package layer

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// ParamTable is the named external parameter bus: a name-indexed provider of
// typed scalars, booleans, and vectors produced by gameplay systems and read
// by layers. Names are resolved to integer indices once at bind time; the
// per-frame read path is index-based only.
//
// Producers write on the main thread between frames; layers read during their
// Prepare step, also on the main thread. The mutex makes the table safe for
// producers that run on other goroutines outside the frame phases.
type ParamTable struct {
	mu    *sync.RWMutex
	index map[string]int
	vals  []paramValue
}

type paramValue struct {
	scalar float32
	flag   bool
	vec    mgl32.Vec3
}

// NewParamTable creates an empty parameter table.
//
// Returns:
//   - *ParamTable: the new table
func NewParamTable() *ParamTable {
	return &ParamTable{
		mu:    &sync.RWMutex{},
		index: make(map[string]int),
	}
}

// Declare registers a parameter name and returns its index. Declaring an
// existing name returns the existing index.
//
// Parameters:
//   - name: the parameter name
//
// Returns:
//   - int: the parameter's stable index
func (t *ParamTable) Declare(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[name]; ok {
		return i
	}
	i := len(t.vals)
	t.index[name] = i
	t.vals = append(t.vals, paramValue{})
	return i
}

// Index resolves a parameter name to its index, or -1 if undeclared. Layers
// call this once at bind time and read by index thereafter.
//
// Parameters:
//   - name: the parameter name to resolve
//
// Returns:
//   - int: the parameter index, or -1 if the name is undeclared
func (t *ParamTable) Index(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// SetScalar writes a scalar parameter by index. Out-of-range indices no-op.
func (t *ParamTable) SetScalar(i int, v float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= 0 && i < len(t.vals) {
		t.vals[i].scalar = v
	}
}

// SetBool writes a boolean parameter by index. Out-of-range indices no-op.
func (t *ParamTable) SetBool(i int, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= 0 && i < len(t.vals) {
		t.vals[i].flag = v
	}
}

// SetVec3 writes a vector parameter by index. Out-of-range indices no-op.
func (t *ParamTable) SetVec3(i int, v mgl32.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= 0 && i < len(t.vals) {
		t.vals[i].vec = v
	}
}

// Scalar reads a scalar parameter by index. Out-of-range indices read zero.
func (t *ParamTable) Scalar(i int) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i >= 0 && i < len(t.vals) {
		return t.vals[i].scalar
	}
	return 0
}

// Bool reads a boolean parameter by index. Out-of-range indices read false.
func (t *ParamTable) Bool(i int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i >= 0 && i < len(t.vals) {
		return t.vals[i].flag
	}
	return false
}

// Vec3 reads a vector parameter by index. Out-of-range indices read zero.
func (t *ParamTable) Vec3(i int) mgl32.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i >= 0 && i < len(t.vals) {
		return t.vals[i].vec
	}
	return mgl32.Vec3{}
}
