// Package effects implements the Effect Controller: the state machine that
// chooses the next lighting effect from pools keyed by light-show type,
// per spec §4.6.
package effects

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cartomix/lightshow/internal/classifier"
	"github.com/cartomix/lightshow/internal/trackanalysis"
)

// Kind tags the variant of an Effect, per spec §3.
type Kind int

const (
	Autoloop Kind = iota
	SpecialEffect
	ColorOverride
	Overlay
)

// Effect is an immutable value drawn from a fixed pool.
type Effect struct {
	Kind    Kind
	Channel int // meaningful for Autoloop/SpecialEffect/ColorOverride
	Overlay int // meaningful for Overlay
}

func (e Effect) String() string {
	switch e.Kind {
	case Autoloop:
		return fmt.Sprintf("AUTOLOOP(%d)", e.Channel)
	case SpecialEffect:
		return fmt.Sprintf("SPECIAL_EFFECT(%d)", e.Channel)
	case ColorOverride:
		return fmt.Sprintf("COLOR_OVERRIDE(%d)", e.Channel)
	case Overlay:
		return fmt.Sprintf("OVERLAY(%d)", e.Overlay)
	default:
		return "UNKNOWN"
	}
}

// Pools groups the fixed configuration of candidate effects per
// light-show type, treated as opaque lists by the controller.
type Pools struct {
	Low, Medium, High, HipHop, Special, ColorOverrides []Effect
}

func (p Pools) poolFor(t classifier.LightShowType) []Effect {
	switch t {
	case classifier.Low:
		return p.Low
	case classifier.Medium:
		return p.Medium
	case classifier.High:
		return p.High
	case classifier.HipHop:
		return p.HipHop
	default:
		return p.Medium
	}
}

// MIDISink is the narrow set of MIDI Dispatcher operations the Effect
// Controller drives, per spec §4.8.
type MIDISink interface {
	SetAutoloop(channel int)
	SetSpecialEffect(channel int, duration time.Duration)
	SetColorOverride(channel int)
	ClearColorOverrides()
}

const colorOverrideCooldown = 5 * time.Minute
const specialEffectDuration = 30 * time.Second
const sectionSnapWindow = 5 * time.Second
const loudnessRatioHigh = 1.25
const loudnessRatioLow = 0.7

// Controller owns section-change → effect selection, per spec §4.6.
type Controller struct {
	pools Pools
	midi  MIDISink
	now   func() time.Time
	rng   *rand.Rand

	currentSectionIndex int
	lastAudioSection    *trackanalysis.Section
	lastEffect          *Effect
	lastSpecialEffect   *Effect
	lastColorOverride   *Effect
	lastColorOverrideAt time.Time
}

// New builds a Controller over the given pools and MIDI sink.
func New(pools Pools, midi MIDISink, nowFn func() time.Time) *Controller {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Controller{
		pools:               pools,
		midi:                midi,
		now:                 nowFn,
		rng:                 rand.New(rand.NewPCG(1, 2)),
		currentSectionIndex: -1,
	}
}

// LastEffect returns the most recently applied effect, and false if none
// has been applied yet (or the controller was reset). The Engine reads
// this after ChangeEffect to route Overlay-kind effects to the DMX
// client, which the controller itself never touches.
func (c *Controller) LastEffect() (Effect, bool) {
	if c.lastEffect == nil {
		return Effect{}, false
	}
	return *c.lastEffect, true
}

// CurrentSectionIndex returns the index into track.AudioSections last
// selected by ChangeEffect, or -1 if none (no track, or reset).
func (c *Controller) CurrentSectionIndex() int {
	return c.currentSectionIndex
}

// ChangeEffect implements spec §4.6's change_effect(current_sec, track).
func (c *Controller) ChangeEffect(currentSec float64, track *trackanalysis.TrackAnalysis) {
	if track == nil || len(track.AudioSections) == 0 {
		c.reset()
		return
	}

	idx := track.SectionContaining(currentSec - 1.0)
	if idx < 0 {
		c.reset()
		return
	}

	if idx+1 < len(track.AudioSections) {
		next := track.AudioSections[idx+1]
		cur := track.AudioSections[idx]
		if next.StartSec-currentSec <= sectionSnapWindow.Seconds() {
			distToNext := next.StartSec - currentSec
			distToCur := currentSec - cur.StartSec
			if distToNext < distToCur {
				idx++
			}
		}
	}

	prevSection := c.lastAudioSection
	section := track.AudioSections[idx]
	c.currentSectionIndex = idx
	c.lastAudioSection = &section

	effect := c.pickEffect(track.LightShowType(), prevSection, &section, track)
	c.apply(effect)
	c.lastEffect = &effect
	if effect.Kind == SpecialEffect {
		c.lastSpecialEffect = &effect
	}
}

func (c *Controller) reset() {
	c.currentSectionIndex = -1
	c.lastAudioSection = nil
}

func (c *Controller) pickEffect(t classifier.LightShowType, prev, cur *trackanalysis.Section, track *trackanalysis.TrackAnalysis) Effect {
	if t != classifier.High {
		pool := c.pools.poolFor(t)
		return c.pickExcluding(pool, c.lastEffect)
	}

	if prev != nil && cur.Loudness != 0 {
		rPrev := prev.Loudness / cur.Loudness
		if rPrev > loudnessRatioHigh {
			return c.pickExcluding(c.pools.Special, c.lastSpecialEffect)
		}
		if rPrev < loudnessRatioLow || (cur.Loudness != 0 && track.Loudness/cur.Loudness < loudnessRatioLow) {
			return c.pickExcluding(c.pools.Low, c.lastEffect)
		}
	}
	return c.pickExcluding(c.pools.High, c.lastEffect)
}

func (c *Controller) pickExcluding(pool []Effect, exclude *Effect) Effect {
	if len(pool) == 0 {
		return Effect{}
	}
	if len(pool) == 1 || exclude == nil {
		return pool[c.rng.IntN(len(pool))]
	}
	for {
		candidate := pool[c.rng.IntN(len(pool))]
		if candidate != *exclude {
			return candidate
		}
	}
}

func (c *Controller) apply(effect Effect) {
	switch effect.Kind {
	case Autoloop:
		c.midi.SetAutoloop(effect.Channel)
		if c.now().Sub(c.lastColorOverrideAt) >= colorOverrideCooldown {
			override := c.pickExcluding(c.pools.ColorOverrides, c.lastColorOverride)
			c.midi.SetColorOverride(override.Channel)
			c.lastColorOverride = &override
			c.lastColorOverrideAt = c.now()
		} else {
			c.midi.ClearColorOverrides()
		}
	case SpecialEffect:
		c.midi.SetSpecialEffect(effect.Channel, specialEffectDuration)
	case ColorOverride:
		c.midi.SetColorOverride(effect.Channel)
	case Overlay:
		// Overlay effects are routed to the DMX client by the Engine,
		// which owns the overlay registry; the controller only selects.
	}
}
