package rig

import "fmt"

// Skeleton is one runtime instance of a rig topology: resolved parent/child
// relationships, a local-space bind (reference) pose, and the owner's scene
// transform mapping component space to world space.
//
// A Skeleton is built once per skeleton instance and shared by every layer
// bound against that instance. The scene transform is the only mutable field;
// it is written on the main thread between frames and read during evaluation,
// with the host's phase barrier providing the synchronization.
type Skeleton struct {
	rig         *Rig
	parents     []int32
	children    [][]int32
	bind        []Transform
	nameToIndex map[string]int32

	scene Transform
}

// SkeletonOption is a functional option for configuring a Skeleton during construction.
type SkeletonOption func(*Skeleton)

// WithBindPose is an option builder that sets local bind transforms by element name.
// Elements not present in the map keep the identity bind transform.
//
// Parameters:
//   - pose: local-to-parent bind transforms keyed by element name
//
// Returns:
//   - SkeletonOption: a function that applies the bind pose to a skeleton
func WithBindPose(pose map[string]Transform) SkeletonOption {
	return func(s *Skeleton) {
		for name, t := range pose {
			if idx, ok := s.nameToIndex[name]; ok {
				s.bind[idx] = t
			}
		}
	}
}

// WithSceneTransform is an option builder that sets the owner's scene transform.
//
// Parameters:
//   - t: the component-to-world transform of the skeleton owner
//
// Returns:
//   - SkeletonOption: a function that applies the scene transform to a skeleton
func WithSceneTransform(t Transform) SkeletonOption {
	return func(s *Skeleton) {
		s.scene = t
	}
}

// NewSkeleton builds a skeleton instance from a validated rig. Parent indices
// are derived from the rig's depth ordering (the nearest preceding element one
// depth level up), so parents always precede children in index order.
//
// Parameters:
//   - r: the rig asset describing the topology
//   - options: functional options to further configure the skeleton
//
// Returns:
//   - *Skeleton: the new skeleton instance
//   - error: error if the rig fails validation
func NewSkeleton(r *Rig, options ...SkeletonOption) (*Skeleton, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("skeleton: %w", err)
	}

	n := len(r.Elements)
	s := &Skeleton{
		rig:         r,
		parents:     make([]int32, n),
		children:    make([][]int32, n),
		bind:        make([]Transform, n),
		nameToIndex: make(map[string]int32, n),
		scene:       IdentityTransform(),
	}

	for i, e := range r.Elements {
		s.nameToIndex[e.Name] = int32(i)
		s.bind[i] = IdentityTransform()
		p := parentIndexAt(r.Elements, i)
		s.parents[i] = int32(p)
		if p >= 0 {
			s.children[p] = append(s.children[p], int32(i))
		}
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Rig returns the rig asset this skeleton was built from.
func (s *Skeleton) Rig() *Rig {
	return s.rig
}

// BoneCount returns the number of bones in the skeleton.
func (s *Skeleton) BoneCount() int {
	return len(s.parents)
}

// Parent returns the parent bone index of bone i, or -1 for roots.
func (s *Skeleton) Parent(i int32) int32 {
	return s.parents[i]
}

// Children returns the direct child indices of bone i. The returned slice is
// owned by the skeleton and must not be modified.
func (s *Skeleton) Children(i int32) []int32 {
	return s.children[i]
}

// Name returns the element name of bone i.
func (s *Skeleton) Name(i int32) string {
	return s.rig.Elements[i].Name
}

// Index resolves an element name to its bone index, or -1 if absent.
//
// Parameters:
//   - name: the element name to resolve
//
// Returns:
//   - int32: the bone index, or -1 if the name is not part of this skeleton
func (s *Skeleton) Index(name string) int32 {
	if idx, ok := s.nameToIndex[name]; ok {
		return idx
	}
	return -1
}

// BindLocal returns the local-to-parent bind transform of bone i.
func (s *Skeleton) BindLocal(i int32) Transform {
	return s.bind[i]
}

// SceneTransform returns the owner's component-to-world transform.
func (s *Skeleton) SceneTransform() Transform {
	return s.scene
}

// SetSceneTransform updates the owner's component-to-world transform.
// Main-thread only; must not be called while a frame is being evaluated.
//
// Parameters:
//   - t: the new scene transform
func (s *Skeleton) SetSceneTransform(t Transform) {
	s.scene = t
}
