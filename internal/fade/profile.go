package fade

import (
	"errors"
	"fmt"
	"time"
)

// Default fade parameters.
const (
	DefaultCeiling          = 0.25
	DefaultFadeInStep       = 0.02
	DefaultFadeInPeriod     = 1000 * time.Millisecond
	DefaultFadeOutStep      = 0.1
	DefaultFadeOutPeriod    = 200 * time.Millisecond
	DefaultFadeOutThreshold = 0.1
)

// Profile holds the step sizes and periods of both fades.
type Profile struct {
	Ceiling          float64       // Maximum volume reached by a fade-in
	FadeInStep       float64       // Volume added per fade-in tick
	FadeInPeriod     time.Duration // Time between fade-in ticks
	FadeOutStep      float64       // Volume removed per fade-out tick
	FadeOutPeriod    time.Duration // Time between fade-out ticks
	FadeOutThreshold float64       // Fade-out ends once the pre-tick volume is at or below this
}

// DefaultProfile returns the stock fade profile.
func DefaultProfile() Profile {
	return Profile{
		Ceiling:          DefaultCeiling,
		FadeInStep:       DefaultFadeInStep,
		FadeInPeriod:     DefaultFadeInPeriod,
		FadeOutStep:      DefaultFadeOutStep,
		FadeOutPeriod:    DefaultFadeOutPeriod,
		FadeOutThreshold: DefaultFadeOutThreshold,
	}
}

// Profile validation errors.
var (
	ErrInvalidCeiling = errors.New("ceiling must be in (0, 1]")
	ErrInvalidStep    = errors.New("fade step must be greater than 0")
	ErrInvalidPeriod  = errors.New("fade period must be greater than 0")
)

// Validate checks that the profile describes a usable fade.
func (p Profile) Validate() error {
	if p.Ceiling <= 0 || p.Ceiling > 1 {
		return fmt.Errorf("%w, got %v", ErrInvalidCeiling, p.Ceiling)
	}
	if p.FadeInStep <= 0 || p.FadeOutStep <= 0 {
		return ErrInvalidStep
	}
	if p.FadeInPeriod <= 0 || p.FadeOutPeriod <= 0 {
		return ErrInvalidPeriod
	}
	if p.FadeOutThreshold < 0 || p.FadeOutThreshold > p.Ceiling {
		return fmt.Errorf("fade-out threshold must be in [0, %v], got %v", p.Ceiling, p.FadeOutThreshold)
	}
	return nil
}
