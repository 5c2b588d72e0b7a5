package fade

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every state pushed by the controller.
type recordingSink struct {
	mu     sync.Mutex
	states []State
}

func (r *recordingSink) Apply(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingSink) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func newTestController() (*Controller, *ManualClock, *recordingSink) {
	clock := NewManualClock()
	sink := &recordingSink{}
	return New(DefaultProfile(), clock, sink, nil), clock, sink
}

func TestController_StartsSilent(t *testing.T) {
	c, clock, _ := newTestController()

	s := c.State()
	assert.Equal(t, 0.0, s.Volume)
	assert.False(t, s.Playing)
	assert.False(t, s.Visible)
	assert.Equal(t, PhaseSilent, s.Phase)
	assert.False(t, c.ActiveFade())
	assert.Equal(t, 0, clock.Active())
}

func TestController_FadeInFirstTick(t *testing.T) {
	c, clock, _ := newTestController()

	c.SetVisible(true)
	assert.True(t, c.State().Playing)
	assert.Equal(t, 0.0, c.State().Volume)

	clock.Advance(time.Second)
	s := c.State()
	assert.InDelta(t, 0.02, s.Volume, 1e-9)
	assert.True(t, s.Playing)
	assert.Equal(t, PhaseFadingIn, s.Phase)
}

func TestController_FadeInClampsAtCeiling(t *testing.T) {
	c, clock, _ := newTestController()
	c.SetVisible(true)

	for i := 0; i < 12; i++ {
		clock.Advance(time.Second)
	}
	assert.InDelta(t, 0.24, c.State().Volume, 1e-9)

	clock.Advance(time.Second)
	assert.Equal(t, 0.25, c.State().Volume)
	assert.Equal(t, PhaseAudible, c.State().Phase)

	// The fade-in task keeps running once clamped.
	clock.Advance(10 * time.Second)
	assert.Equal(t, 0.25, c.State().Volume)
	assert.True(t, c.ActiveFade())
	assert.Equal(t, 1, clock.Active())
}

func TestController_FadeOutFromCeiling(t *testing.T) {
	c, clock, _ := newTestController()
	c.SetVisible(true)
	clock.Advance(13 * time.Second)
	require.Equal(t, 0.25, c.State().Volume)

	c.SetVisible(false)
	assert.True(t, c.State().Playing)
	assert.Equal(t, PhaseFadingOut, c.State().Phase)

	clock.Advance(200 * time.Millisecond)
	assert.InDelta(t, 0.15, c.State().Volume, 1e-9)
	assert.True(t, c.State().Playing)

	clock.Advance(200 * time.Millisecond)
	assert.InDelta(t, 0.05, c.State().Volume, 1e-9)
	assert.True(t, c.State().Playing)
	assert.True(t, c.ActiveFade())

	clock.Advance(200 * time.Millisecond)
	s := c.State()
	assert.Equal(t, 0.0, s.Volume)
	assert.False(t, s.Playing)
	assert.Equal(t, PhaseSilent, s.Phase)
	assert.False(t, c.ActiveFade())
	assert.Equal(t, 0, clock.Active())
}

func TestController_FadeOutSelfCancels(t *testing.T) {
	c, clock, sink := newTestController()
	c.SetVisible(true)
	clock.Advance(3 * time.Second)
	c.SetVisible(false)
	clock.Advance(time.Second)

	require.False(t, c.State().Playing)
	pushed := len(sink.states)

	clock.Advance(time.Minute)
	assert.Len(t, sink.states, pushed)
	assert.Equal(t, 0.0, c.State().Volume)
}

func TestController_FadeOutThresholdUsesPreviousVolume(t *testing.T) {
	p := DefaultProfile()
	p.FadeOutStep = 0.05

	clock := NewManualClock()
	c := New(p, clock, nil, nil)
	c.SetVisible(true)
	clock.Advance(7 * time.Second) // 0.14
	c.SetVisible(false)

	clock.Advance(200 * time.Millisecond)
	assert.InDelta(t, 0.09, c.State().Volume, 1e-9)
	assert.True(t, c.State().Playing)

	// 0.09 is below the threshold, so the fade ends in one step.
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 0.0, c.State().Volume)
	assert.False(t, c.State().Playing)
}

func TestController_RapidToggleLeavesOneTask(t *testing.T) {
	c, clock, _ := newTestController()

	c.SetVisible(true)
	c.SetVisible(false)

	assert.Equal(t, 1, clock.Active())
	assert.Equal(t, PhaseFadingOut, c.State().Phase)

	clock.Advance(200 * time.Millisecond)
	assert.False(t, c.State().Playing)
	assert.Equal(t, 0, clock.Active())
}

func TestController_ReenterDuringFadeOut(t *testing.T) {
	c, clock, _ := newTestController()
	c.SetVisible(true)
	clock.Advance(13 * time.Second)

	c.SetVisible(false)
	clock.Advance(200 * time.Millisecond)
	require.InDelta(t, 0.15, c.State().Volume, 1e-9)

	c.SetVisible(true)
	assert.Equal(t, 1, clock.Active())
	assert.True(t, c.State().Playing)

	// Only the fade-in period applies now.
	clock.Advance(800 * time.Millisecond)
	assert.InDelta(t, 0.15, c.State().Volume, 1e-9)
	clock.Advance(200 * time.Millisecond)
	assert.InDelta(t, 0.17, c.State().Volume, 1e-9)
}

func TestController_RepeatedVisibilityIgnored(t *testing.T) {
	c, clock, sink := newTestController()

	c.SetVisible(false)
	assert.Empty(t, sink.states)
	assert.Equal(t, 0, clock.Active())

	c.SetVisible(true)
	clock.Advance(500 * time.Millisecond)
	c.SetVisible(true)
	clock.Advance(500 * time.Millisecond)

	// The second SetVisible(true) did not restart the period.
	assert.InDelta(t, 0.02, c.State().Volume, 1e-9)
	assert.Equal(t, 1, clock.Active())
}

func TestController_Close(t *testing.T) {
	c, clock, _ := newTestController()
	c.SetVisible(true)
	clock.Advance(2 * time.Second)

	c.Close()
	assert.Equal(t, 0, clock.Active())
	assert.False(t, c.ActiveFade())

	volume := c.State().Volume
	clock.Advance(10 * time.Second)
	assert.Equal(t, volume, c.State().Volume)

	c.SetVisible(false)
	assert.Equal(t, 0, clock.Active())

	// Idempotent.
	c.Close()
}

func TestController_SinkSeesEveryChange(t *testing.T) {
	c, clock, sink := newTestController()

	c.SetVisible(true)
	require.Len(t, sink.states, 1)
	assert.True(t, sink.last().Playing)
	assert.True(t, sink.last().Visible)

	clock.Advance(13 * time.Second)
	assert.Len(t, sink.states, 14)

	// Clamped ticks do not change anything.
	clock.Advance(5 * time.Second)
	assert.Len(t, sink.states, 14)
	assert.Equal(t, 0.25, sink.last().Volume)

	c.SetVisible(false)
	clock.Advance(time.Second)
	assert.Equal(t, 0.0, sink.last().Volume)
	assert.False(t, sink.last().Playing)
}

func TestController_SetProfileClampsVolume(t *testing.T) {
	c, clock, _ := newTestController()
	c.SetVisible(true)
	clock.Advance(13 * time.Second)

	p := DefaultProfile()
	p.Ceiling = 0.1
	c.SetProfile(p)
	assert.Equal(t, 0.1, c.State().Volume)

	clock.Advance(time.Second)
	assert.Equal(t, 0.1, c.State().Volume)
}

func TestController_RandomTogglesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c, clock, _ := newTestController()

	for i := 0; i < 2000; i++ {
		if rng.Intn(3) == 0 {
			c.SetVisible(rng.Intn(2) == 0)
		}
		clock.Advance(time.Duration(rng.Intn(1200)) * time.Millisecond)

		s := c.State()
		require.LessOrEqual(t, clock.Active(), 1, "step %d", i)
		require.GreaterOrEqual(t, s.Volume, 0.0, "step %d", i)
		require.LessOrEqual(t, s.Volume, 0.25, "step %d", i)
		if s.Volume > 0 || s.Phase == PhaseFadingIn {
			require.True(t, s.Playing, "step %d", i)
		}
	}
}

func TestController_SystemClock(t *testing.T) {
	p := DefaultProfile()
	p.FadeInPeriod = 2 * time.Millisecond
	p.FadeOutPeriod = 2 * time.Millisecond

	c := New(p, SystemClock{}, nil, nil)
	defer c.Close()

	c.SetVisible(true)
	require.Eventually(t, func() bool {
		return c.State().Volume == 0.25
	}, 2*time.Second, 5*time.Millisecond)

	c.SetVisible(false)
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.Playing && s.Volume == 0 && !c.ActiveFade()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseSilent, "silent"},
		{PhaseFadingIn, "fading-in"},
		{PhaseAudible, "audible"},
		{PhaseFadingOut, "fading-out"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
		})
	}
}

func TestPhase_UnmarshalText(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("fading-out")))
	assert.Equal(t, PhaseFadingOut, p)

	assert.Error(t, p.UnmarshalText([]byte("loud")))
}
