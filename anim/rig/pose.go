package rig

// Space identifies the coordinate frame a Pose is expressed and applied in.
type Space int

const (
	// SpaceLocal applies the pose in the bone's local-to-parent frame.
	SpaceLocal Space = iota

	// SpaceComponent applies the pose relative to the skeleton's root/component frame.
	SpaceComponent

	// SpaceWorld applies the pose in world space, resolved through the
	// skeleton owner's scene transform.
	SpaceWorld
)

// String returns the lowercase name of the space, matching the serialized form.
func (s Space) String() string {
	switch s {
	case SpaceLocal:
		return "local"
	case SpaceComponent:
		return "component"
	case SpaceWorld:
		return "world"
	}
	return "unknown"
}

// ModifyMode selects how a Pose combines with the bone's current transform.
type ModifyMode int

const (
	// ModifyAdd composes the pose as a delta onto the current joint transform.
	ModifyAdd ModifyMode = iota

	// ModifyOverride blends the joint directly toward the authored transform.
	ModifyOverride
)

// String returns the lowercase name of the mode, matching the serialized form.
func (m ModifyMode) String() string {
	switch m {
	case ModifyAdd:
		return "add"
	case ModifyOverride:
		return "override"
	}
	return "unknown"
}

// Pose is an authored Transform tagged with the Space it is expressed in and
// the ModifyMode used to combine it with the current joint state. Poses are
// authored once per layer-configuration entry and reinterpreted every frame
// against the current joint transform.
type Pose struct {
	// Transform is the authored transform value.
	Transform Transform

	// Space is the coordinate frame the transform is expressed in.
	Space Space

	// Mode selects additive or override application.
	Mode ModifyMode
}

// IdentityPose returns an additive, local-space identity pose, which applies
// no change at any weight.
//
// Returns:
//   - Pose: the identity pose
func IdentityPose() Pose {
	return Pose{
		Transform: IdentityTransform(),
		Space:     SpaceLocal,
		Mode:      ModifyAdd,
	}
}
