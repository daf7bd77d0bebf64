package layer

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/whosteenie/rigkit/anim/rig"
)

// Kind identifies a layer variant. The variant set is closed; there is one
// settings record type and one layer implementation per kind.
type Kind string

const (
	KindSway              Kind = "sway"
	KindRecoil            Kind = "recoil"
	KindLimbIK            Kind = "limb_ik"
	KindPoseOffset        Kind = "pose_offset"
	KindCollisionReaction Kind = "collision_reaction"
	KindViewAlign         Kind = "view_align"
	KindLookTurn          Kind = "look_turn"
	KindAttach            Kind = "attach"
	KindPoseSampler       Kind = "pose_sampler"
)

// Settings is the immutable configuration asset of one layer instance.
// Changing a layer's configuration at runtime requires a relink.
type Settings interface {
	// Kind returns the variant this settings record configures.
	Kind() Kind

	// Validate checks the record for structural errors (missing bone names,
	// out-of-range weights).
	Validate() error
}

// PoseSpec is the serialized form of an authored pose: position, XYZ Euler
// rotation in degrees, optional scale, and the space/mode tags.
type PoseSpec struct {
	Position [3]float32  `yaml:"position"`
	Rotation [3]float32  `yaml:"rotation"`
	Scale    *[3]float32 `yaml:"scale,omitempty"`
	Space    string      `yaml:"space"`
	Mode     string      `yaml:"mode"`
}

// Pose converts the serialized spec into a runtime pose. An empty space
// defaults to local, an empty mode to add.
//
// Returns:
//   - rig.Pose: the runtime pose
//   - error: error if the space or mode tag is unrecognized
func (p PoseSpec) Pose() (rig.Pose, error) {
	out := rig.IdentityPose()
	out.Transform.Position = mgl32.Vec3{p.Position[0], p.Position[1], p.Position[2]}
	out.Transform.Rotation = mgl32.AnglesToQuat(
		mgl32.DegToRad(p.Rotation[0]),
		mgl32.DegToRad(p.Rotation[1]),
		mgl32.DegToRad(p.Rotation[2]),
		mgl32.XYZ,
	)
	if p.Scale != nil {
		out.Transform.Scale = mgl32.Vec3{p.Scale[0], p.Scale[1], p.Scale[2]}
	}

	switch p.Space {
	case "", "local":
		out.Space = rig.SpaceLocal
	case "component":
		out.Space = rig.SpaceComponent
	case "world":
		out.Space = rig.SpaceWorld
	default:
		return rig.Pose{}, fmt.Errorf("unknown pose space %q", p.Space)
	}

	switch p.Mode {
	case "", "add":
		out.Mode = rig.ModifyAdd
	case "override":
		out.Mode = rig.ModifyOverride
	default:
		return rig.Pose{}, fmt.Errorf("unknown pose mode %q", p.Mode)
	}

	return out, nil
}

// New creates an unbound layer instance for the given settings record.
//
// Parameters:
//   - s: the settings asset to build a layer for
//
// Returns:
//   - Layer: the new, unbound layer
//   - error: error if the settings fail validation or the kind is unknown
func New(s Settings) (Layer, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("layer %q: invalid settings: %w", s.Kind(), err)
	}
	switch s.Kind() {
	case KindSway:
		return &swayLayer{}, nil
	case KindRecoil:
		return &recoilLayer{}, nil
	case KindLimbIK:
		return &limbIKLayer{}, nil
	case KindPoseOffset:
		return &poseOffsetLayer{}, nil
	case KindCollisionReaction:
		return &collisionLayer{}, nil
	case KindViewAlign:
		return &viewAlignLayer{}, nil
	case KindLookTurn:
		return &lookTurnLayer{}, nil
	case KindAttach:
		return &attachLayer{}, nil
	case KindPoseSampler:
		return &poseSamplerLayer{}, nil
	}
	return nil, fmt.Errorf("unknown layer kind %q", s.Kind())
}

// Bundle is a serialized ordered collection of layer settings, one record per
// layer, in stack order.
type Bundle struct {
	// Layers are the decoded settings records in authored order.
	Layers []Settings
}

// ParseBundle decodes a YAML layer bundle. Each list entry carries a `kind`
// tag selecting the concrete settings record to decode into.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Bundle: the decoded bundle
//   - error: error if decoding or validation of any entry fails
func ParseBundle(data []byte) (*Bundle, error) {
	var raw struct {
		Layers []yaml.Node `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode layer bundle: %w", err)
	}

	b := &Bundle{Layers: make([]Settings, 0, len(raw.Layers))}
	for i, node := range raw.Layers {
		var head struct {
			Kind Kind `yaml:"kind"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("layer %d: missing kind tag: %w", i, err)
		}

		s, err := decodeSettings(head.Kind, &node)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, head.Kind, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("layer %d (%s): invalid settings: %w", i, head.Kind, err)
		}
		b.Layers = append(b.Layers, s)
	}
	return b, nil
}

// LoadBundle reads and decodes a layer bundle from a YAML file on disk.
//
// Parameters:
//   - path: the file path to read
//
// Returns:
//   - *Bundle: the decoded bundle
//   - error: error if reading or decoding fails
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer bundle %s: %w", path, err)
	}
	b, err := ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("layer bundle %s: %w", path, err)
	}
	return b, nil
}

// decodeSettings decodes one bundle entry into its concrete settings record.
func decodeSettings(kind Kind, node *yaml.Node) (Settings, error) {
	var s Settings
	switch kind {
	case KindSway:
		s = &SwaySettings{}
	case KindRecoil:
		s = &RecoilSettings{}
	case KindLimbIK:
		s = &LimbIKSettings{}
	case KindPoseOffset:
		s = &PoseOffsetSettings{}
	case KindCollisionReaction:
		s = &CollisionReactionSettings{}
	case KindViewAlign:
		s = &ViewAlignSettings{}
	case KindLookTurn:
		s = &LookTurnSettings{}
	case KindAttach:
		s = &AttachSettings{}
	case KindPoseSampler:
		s = &PoseSamplerSettings{}
	default:
		return nil, fmt.Errorf("unknown layer kind %q", kind)
	}
	if err := node.Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}
