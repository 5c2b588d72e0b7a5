package fade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_FiresInOrder(t *testing.T) {
	clock := NewManualClock()
	var fired []string

	clock.Every(300*time.Millisecond, func() { fired = append(fired, "slow") })
	clock.Every(100*time.Millisecond, func() { fired = append(fired, "fast") })

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"fast", "fast", "slow", "fast"}, fired)
	assert.Equal(t, time.Time{}.Add(300*time.Millisecond), clock.Now())
}

func TestManualClock_StopFromCallback(t *testing.T) {
	clock := NewManualClock()
	count := 0

	var ticker Ticker
	ticker = clock.Every(100*time.Millisecond, func() {
		count++
		if count == 2 {
			ticker.Stop()
		}
	})

	clock.Advance(time.Second)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, clock.Active())
}

func TestManualClock_PartialAdvance(t *testing.T) {
	clock := NewManualClock()
	count := 0
	clock.Every(time.Second, func() { count++ })

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, count)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, count)
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *Profile)
		wantErr bool
	}{
		{"default", func(p *Profile) {}, false},
		{"zero ceiling", func(p *Profile) { p.Ceiling = 0 }, true},
		{"ceiling above one", func(p *Profile) { p.Ceiling = 1.5 }, true},
		{"zero fade-in step", func(p *Profile) { p.FadeInStep = 0 }, true},
		{"negative fade-out step", func(p *Profile) { p.FadeOutStep = -0.1 }, true},
		{"zero period", func(p *Profile) { p.FadeOutPeriod = 0 }, true},
		{"threshold above ceiling", func(p *Profile) { p.FadeOutThreshold = 0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.modify(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
