package layer

import (
	"fmt"

	"github.com/whosteenie/rigkit/anim/rig"
)

// PoseOffsetEntry is one authored per-bone delta in a pose offset layer.
type PoseOffsetEntry struct {
	// Bone is the rig element the pose is applied to.
	Bone string `yaml:"bone"`

	// Pose is the authored delta or override.
	Pose PoseSpec `yaml:"pose"`

	// KeepChildren preserves the component-space transforms of the bone's
	// direct children so descendants are not double-transformed when a later
	// entry also touches them.
	KeepChildren bool `yaml:"keepChildren"`
}

// PoseOffsetSettings configures a pose offset layer: a static authored list of
// per-bone deltas applied every frame, each in its own space and mode.
type PoseOffsetSettings struct {
	Entries []PoseOffsetEntry `yaml:"entries"`
}

// Kind returns KindPoseOffset.
func (s *PoseOffsetSettings) Kind() Kind { return KindPoseOffset }

// Validate checks every entry for a bone reference and a decodable pose.
func (s *PoseOffsetSettings) Validate() error {
	if len(s.Entries) == 0 {
		return fmt.Errorf("at least one entry is required")
	}
	for i, e := range s.Entries {
		if e.Bone == "" {
			return fmt.Errorf("entry %d: bone is required", i)
		}
		if _, err := e.Pose.Pose(); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.Bone, err)
		}
	}
	return nil
}

// poseOffsetEntry is one bound entry: the resolved handle plus the decoded
// runtime pose.
type poseOffsetEntry struct {
	handle       rig.Handle
	pose         rig.Pose
	keepChildren bool
}

type poseOffsetLayer struct {
	baseLayer
	settings *PoseOffsetSettings
	entries  []poseOffsetEntry
}

var _ Layer = &poseOffsetLayer{}

func (l *poseOffsetLayer) Kind() Kind { return KindPoseOffset }

func (l *poseOffsetLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*PoseOffsetSettings)
	if !ok {
		return errSettingsType(KindPoseOffset, settings)
	}
	l.job = job
	if err := l.rebindEntries(s); err != nil {
		return err
	}
	l.status = StatusInactive
	return nil
}

func (l *poseOffsetLayer) Link(settings Settings) error {
	s, ok := settings.(*PoseOffsetSettings)
	if !ok {
		return errSettingsType(KindPoseOffset, settings)
	}
	if err := l.rebindEntries(s); err != nil {
		return err
	}
	l.status = StatusActive
	return nil
}

// rebindEntries resolves handles and decodes runtime poses from the settings.
// Runs at bind and again on every relink so hot-swapped poses take effect.
func (l *poseOffsetLayer) rebindEntries(s *PoseOffsetSettings) error {
	l.settings = s
	l.entries = make([]poseOffsetEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		p, err := e.Pose.Pose()
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Bone, err)
		}
		l.entries = append(l.entries, poseOffsetEntry{
			handle:       l.job.Binding.Resolve(e.Bone),
			pose:         p,
			keepChildren: e.KeepChildren,
		})
	}
	return nil
}

func (l *poseOffsetLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
}

func (l *poseOffsetLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() {
		return
	}
	for _, e := range l.entries {
		if !e.handle.Valid() {
			continue
		}
		if e.keepChildren {
			pose.ApplyKeepChildren(e.handle, e.pose, l.weight)
		} else {
			pose.Apply(e.handle, e.pose, l.weight)
		}
	}
}

func (l *poseOffsetLayer) PostEvaluate() {}

func (l *poseOffsetLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.entries = nil
}
