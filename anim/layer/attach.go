package layer

import (
	"fmt"

	"github.com/whosteenie/rigkit/anim/rig"
)

// AttachSettings configures the attach layer: a bone chain (typically the
// secondary hand) glued to a moving weapon bone. The chain's pose relative to
// the weapon is cached once after link; every frame the cached relative pose
// is re-derived from the weapon's current transform and blended in by weight.
type AttachSettings struct {
	// WeaponBone is the moving reference element the chain follows.
	WeaponBone string `yaml:"weaponBone"`

	// Chain names the rig chain that is carried along, ordered root to tip.
	Chain string `yaml:"chain"`
}

// Kind returns KindAttach.
func (s *AttachSettings) Kind() Kind { return KindAttach }

// Validate checks the weapon and chain references.
func (s *AttachSettings) Validate() error {
	if s.WeaponBone == "" {
		return fmt.Errorf("weaponBone is required")
	}
	if s.Chain == "" {
		return fmt.Errorf("chain is required")
	}
	return nil
}

type attachLayer struct {
	baseLayer
	settings *AttachSettings

	weapon rig.Handle
	chain  []rig.Handle

	// cached holds each chain element's transform relative to the weapon
	// bone, captured from the first evaluated frame after a link.
	cached      []rig.Transform
	cachedValid bool
}

var _ Layer = &attachLayer{}

func (l *attachLayer) Kind() Kind { return KindAttach }

func (l *attachLayer) Bind(job *JobData, settings Settings) error {
	s, ok := settings.(*AttachSettings)
	if !ok {
		return errSettingsType(KindAttach, settings)
	}
	l.job = job
	l.settings = s
	l.weapon = job.Binding.Resolve(s.WeaponBone)
	l.chain = job.Binding.ResolveChain(s.Chain)
	l.cached = make([]rig.Transform, len(l.chain))
	l.cachedValid = false
	l.status = StatusInactive
	return nil
}

func (l *attachLayer) Link(settings Settings) error {
	s, ok := settings.(*AttachSettings)
	if !ok {
		return errSettingsType(KindAttach, settings)
	}
	l.settings = s
	l.cachedValid = false
	l.status = StatusActive
	return nil
}

func (l *attachLayer) Prepare(weight, dt float32) {
	l.prepareBase(weight, dt)
}

func (l *attachLayer) Evaluate(pose *rig.PoseBuffer) {
	if l.skippable() || !l.weapon.Valid() || len(l.chain) == 0 {
		return
	}

	weapon := pose.Component(l.weapon)

	if !l.cachedValid {
		for i, h := range l.chain {
			if !h.Valid() {
				continue
			}
			l.cached[i] = weapon.RelativeTo(pose.Component(h), false)
		}
		l.cachedValid = true
	}

	// Root-first so each element's conversion sees its already-updated
	// ancestors.
	for i, h := range l.chain {
		if !h.Valid() {
			continue
		}
		goal := weapon.WorldFrom(l.cached[i], false)
		pose.SetComponent(h, pose.Component(h).Lerp(goal, l.weight))
	}
}

func (l *attachLayer) PostEvaluate() {}

func (l *attachLayer) Unbind() {
	l.status = StatusUnbound
	l.job = nil
	l.weapon = rig.InvalidHandle()
	l.chain = nil
	l.cached = nil
	l.cachedValid = false
}
