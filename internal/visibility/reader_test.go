package visibility

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		visible bool
		skip    bool
		wantErr bool
	}{
		{"enter", true, false, false},
		{"  VISIBLE ", true, false, false},
		{"1", true, false, false},
		{"exit", false, false, false},
		{"hidden", false, false, false},
		{"false", false, false, false},
		{`{"visible":true}`, true, false, false},
		{`{"visible":false,"ratio":0.1}`, false, false, false},
		{"", false, true, false},
		{"# comment", false, true, false},
		{`{"ratio":1}`, false, false, true},
		{`{broken`, false, false, true},
		{"maybe", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			visible, skip, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.visible, visible)
			assert.Equal(t, tt.skip, skip)
		})
	}
}

func TestReader_Run(t *testing.T) {
	input := "enter\n\nexit\nnonsense\n{\"visible\":true}\n"
	r := NewReader(strings.NewReader(input))

	var events []Event
	var errs []error
	err := r.Run(context.Background(), func(e Event) {
		events = append(events, e)
	}, func(err error) {
		errs = append(errs, err)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.True(t, events[0].Visible)
	assert.False(t, events[1].Visible)
	assert.True(t, events[2].Visible)
	assert.False(t, events[0].At.IsZero())

	require.Len(t, errs, 1)
	var perr *ParseError
	require.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, 4, perr.Line)
	assert.Equal(t, "nonsense", perr.Content)
}

func TestReader_RunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := NewReader(pr)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(e Event) { got <- e }, nil)
	}()

	_, err := io.WriteString(pw, "enter\n")
	require.NoError(t, err)
	select {
	case e := <-got:
		assert.True(t, e.Visible)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
