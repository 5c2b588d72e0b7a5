package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// ToneOptions describes a generated placeholder track.
type ToneOptions struct {
	Duration    time.Duration // Whole seconds keep integer frequencies seamless when looped
	SampleRate  int
	Frequencies []float64 // Partials mixed with equal weight
	Amplitude   float64   // Peak level, 0.0-1.0
	SwellPeriod time.Duration
}

// DefaultToneOptions returns a quiet, loopable pad.
func DefaultToneOptions() ToneOptions {
	return ToneOptions{
		Duration:    8 * time.Second,
		SampleRate:  44100,
		Frequencies: []float64{110, 165, 220, 275},
		Amplitude:   0.4,
		SwellPeriod: 4 * time.Second,
	}
}

const toneBitDepth = 16

// WriteTone renders a mono 16-bit PCM WAV pad to w. It is used when no
// ambient track has been installed yet.
func WriteTone(w io.WriteSeeker, opts ToneOptions) error {
	if opts.SampleRate <= 0 {
		return errors.New("sample rate must be greater than 0")
	}
	if opts.Duration <= 0 {
		return errors.New("duration must be greater than 0")
	}
	if len(opts.Frequencies) == 0 {
		return errors.New("at least one frequency is required")
	}
	if opts.Amplitude <= 0 || opts.Amplitude > 1 {
		return fmt.Errorf("amplitude must be in (0, 1], got %v", opts.Amplitude)
	}

	frames := int(opts.Duration.Seconds() * float64(opts.SampleRate))
	peak := float64(int(1)<<(toneBitDepth-1) - 1)

	data := make([]int, frames)
	for i := range data {
		t := float64(i) / float64(opts.SampleRate)

		var sample float64
		for _, f := range opts.Frequencies {
			sample += math.Sin(2 * math.Pi * f * t)
		}
		sample /= float64(len(opts.Frequencies))

		if opts.SwellPeriod > 0 {
			swell := 0.5 - 0.5*math.Cos(2*math.Pi*t/opts.SwellPeriod.Seconds())
			sample *= 0.6 + 0.4*swell
		}

		data[i] = int(sample * opts.Amplitude * peak)
	}

	enc := gowav.NewEncoder(w, opts.SampleRate, toneBitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: opts.SampleRate},
		Data:           data,
		SourceBitDepth: toneBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode tone: %w", err)
	}
	return enc.Close()
}
