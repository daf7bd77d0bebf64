package layer

import (
	"fmt"

	"github.com/whosteenie/rigkit/anim/rig"
)

// ViewAlignEntry is one authored alignment pose for a hand or weapon bone.
type ViewAlignEntry struct {
	// Bone is the rig element the alignment pose overrides.
	Bone string `yaml:"bone"`

	// Pose is the authored alignment transform. The mode tag is ignored;
	// alignment always overrides.
	Pose PoseSpec `yaml:"pose"`
}

// ViewAlignSettings configures the view alignment layer: static authored
// per-hand and weapon poses, applied as overrides, establishing the aim-down-
// sights baseline other layers compose on top of.
type ViewAlignSettings struct {
	Entries []ViewAlignEntry `yaml:"entries"`
}

// Kind returns KindViewAlign.
func (s *ViewAlignSettings) Kind() Kind { return KindViewAlign }

// Validate checks every entry for a bone reference and a decodable pose.
func (s *ViewAlignSettings) Validate() error {
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

type viewAlignEntry struct {
	handle rig.Handle
	pose   rig.Pose
}

type viewAlignLayer struct {
	baseLayer
	settings *ViewAlignSettings
	entries  []viewAlignEntry
}

var _ Layer = &viewAlignLayer{}

func (l *viewAlignLayer) Kind() Kind { return KindViewAlign }

func (l *viewAlignLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*ViewAlignSettings)
	if !ok {
		return errSettingsType(KindViewAlign, settings)
	}
	l.job = job
	if err := l.rebindEntries(s); err != nil {
		return err
	}
	l.status = StatusInactive
	return nil
}

func (l *viewAlignLayer) Link(settings Settings) error {
	s, ok := settings.(*ViewAlignSettings)
	if !ok {
		return errSettingsType(KindViewAlign, settings)
	}
	if err := l.rebindEntries(s); err != nil {
		return err
	}
	l.status = StatusActive
	return nil
}

// rebindEntries resolves handles and decodes alignment poses from the
// settings. Runs at bind and again on every relink.
func (l *viewAlignLayer) rebindEntries(s *ViewAlignSettings) error {
	l.settings = s
	l.entries = make([]viewAlignEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		p, err := e.Pose.Pose()
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Bone, err)
		}
		p.Mode = rig.ModifyOverride
		l.entries = append(l.entries, viewAlignEntry{
			handle: l.job.Binding.Resolve(e.Bone),
			pose:   p,
		})
	}
	return nil
}

func (l *viewAlignLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
}

func (l *viewAlignLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() {
		return
	}
	for _, e := range l.entries {
		if !e.handle.Valid() {
			continue
		}
		pose.Apply(e.handle, e.pose, l.weight)
	}
}

func (l *viewAlignLayer) PostEvaluate() {}

func (l *viewAlignLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.entries = nil
}
