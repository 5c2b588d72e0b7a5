package fade

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Phase describes where the controller is in its fade cycle.
type Phase int

const (
	PhaseSilent Phase = iota
	PhaseFadingIn
	PhaseAudible
	PhaseFadingOut
)

// PhaseNames maps phases to the names used in logs and API output.
var PhaseNames = map[Phase]string{
	PhaseSilent:    "silent",
	PhaseFadingIn:  "fading-in",
	PhaseAudible:   "audible",
	PhaseFadingOut: "fading-out",
}

func (p Phase) String() string {
	if name, ok := PhaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range PhaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// State is a snapshot of the values handed to the playback sink.
type State struct {
	Volume  float64 `json:"volume" yaml:"volume"`
	Playing bool    `json:"playing" yaml:"playing"`
	Visible bool    `json:"visible" yaml:"visible"`
	Phase   Phase   `json:"phase" yaml:"phase"`
}

// Sink receives every state change. Apply is called with the controller's
// lock held, so it must not call back into the Controller.
type Sink interface {
	Apply(State)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(State)

// Apply calls f(s).
func (f SinkFunc) Apply(s State) { f(s) }

type direction int

const (
	fadeIn direction = iota
	fadeOut
)

// fadeTask is the single scheduled fade. A tick whose task is no longer the
// controller's active task is discarded.
type fadeTask struct {
	dir    direction
	ticker Ticker
}

// Controller maps the visibility of the contact section to the volume and
// playing flag of a looping track.
type Controller struct {
	mu      sync.Mutex
	logger  *slog.Logger
	profile Profile
	clock   Clock
	sink    Sink

	volume  float64
	playing bool
	visible bool

	active *fadeTask
	closed bool
}

// New creates a silent controller. A nil clock uses SystemClock; a nil sink
// discards state changes.
func New(profile Profile, clock Clock, sink Sink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if sink == nil {
		sink = SinkFunc(func(State) {})
	}

	return &Controller{
		logger:  logger,
		profile: profile,
		clock:   clock,
		sink:    sink,
	}
}

// SetVisible reports a new visibility value. Repeated values are ignored.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || visible == c.visible {
		return
	}
	c.visible = visible

	// The previous fade is always released before the next one exists.
	c.cancelLocked()

	task := &fadeTask{}
	if visible {
		task.dir = fadeIn
		c.playing = true
		task.ticker = c.clock.Every(c.profile.FadeInPeriod, func() { c.tick(task) })
		c.logger.Debug("section visible, fading in", "volume", c.volume)
	} else {
		task.dir = fadeOut
		task.ticker = c.clock.Every(c.profile.FadeOutPeriod, func() { c.tick(task) })
		c.logger.Debug("section hidden, fading out", "volume", c.volume)
	}
	c.active = task

	c.sink.Apply(c.snapshotLocked())
}

// tick advances the fade owned by task by one step.
func (c *Controller) tick(task *fadeTask) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != task {
		return
	}

	prevVolume, prevPlaying := c.volume, c.playing

	switch task.dir {
	case fadeIn:
		c.volume = math.Min(c.volume+c.profile.FadeInStep, c.profile.Ceiling)
	case fadeOut:
		// Checked against the volume before this tick's decrement.
		if c.volume <= c.profile.FadeOutThreshold {
			task.ticker.Stop()
			c.active = nil
			c.playing = false
			c.volume = 0
			c.logger.Debug("fade-out complete")
		} else {
			c.volume = math.Max(c.volume-c.profile.FadeOutStep, 0)
		}
	}

	if c.volume != prevVolume || c.playing != prevPlaying {
		c.sink.Apply(c.snapshotLocked())
	}
}

// cancelLocked stops the active fade, if any. Caller holds mu.
func (c *Controller) cancelLocked() {
	if c.active == nil {
		return
	}
	c.active.ticker.Stop()
	c.active = nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ActiveFade reports whether a fade task is scheduled.
func (c *Controller) ActiveFade() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Profile returns the fade profile in use.
func (c *Controller) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// SetProfile replaces the fade profile. A running fade keeps its period
// until the next visibility change.
func (c *Controller) SetProfile(p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
	if c.volume > p.Ceiling {
		c.volume = p.Ceiling
		c.sink.Apply(c.snapshotLocked())
	}
}

// Close cancels any scheduled fade. Later visibility changes are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelLocked()
	c.logger.Debug("fade controller closed")
}

func (c *Controller) snapshotLocked() State {
	return State{
		Volume:  c.volume,
		Playing: c.playing,
		Visible: c.visible,
		Phase:   c.phaseLocked(),
	}
}

func (c *Controller) phaseLocked() Phase {
	if c.active != nil {
		if c.active.dir == fadeOut {
			return PhaseFadingOut
		}
		if c.volume >= c.profile.Ceiling {
			return PhaseAudible
		}
		return PhaseFadingIn
	}
	if c.playing {
		return PhaseAudible
	}
	return PhaseSilent
}
