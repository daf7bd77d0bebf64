package layer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
)

// RayFunc casts a ray into the host's collision world and reports the nearest
// hit within maxDist. Implemented by the host; layers that probe geometry
// (collision reaction) call it from their PostEvaluate step only.
type RayFunc func(origin, dir mgl32.Vec3, maxDist float32) (hit bool, distance float32)

// JobData is the per-instance shared context handed to every layer at bind
// time: the skeleton's root handle, the binding resolver, the owner's scene
// transform accessor, the read-only parameter table, and the host's ray-cast
// hook. It is built once per skeleton instance and shared by all layers bound
// against that instance.
type JobData struct {
	// Root is the resolved handle of the skeleton's root bone.
	Root rig.Handle

	// Binding resolves element and chain names into bone handles.
	Binding *rig.Binding

	// Scene returns the owner's current component-to-world transform.
	Scene func() rig.Transform

	// Params is the named external parameter bus.
	Params *ParamTable

	// Ray casts into the host collision world. Nil when the host provides no
	// collision; layers must treat a nil Ray as "never hits".
	Ray RayFunc
}

// NewJobData assembles the shared layer context for one skeleton instance.
// The scene accessor defaults to the skeleton's own scene transform.
//
// Parameters:
//   - binding: the instance's binding resolver
//   - params: the parameter table layers will read
//
// Returns:
//   - *JobData: the assembled context
func NewJobData(binding *rig.Binding, params *ParamTable) *JobData {
	skel := binding.Skeleton()
	root := rig.InvalidHandle()
	if skel.BoneCount() > 0 {
		root = binding.Resolve(skel.Name(0))
	}
	return &JobData{
		Root:    root,
		Binding: binding,
		Scene:   skel.SceneTransform,
		Params:  params,
	}
}
