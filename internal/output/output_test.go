package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/folio/internal/outbox"
)

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func testEntries() []outbox.Entry {
	return []outbox.Entry{
		{
			ID:         "01HAAA",
			Source:     "cli",
			Name:       "Ada",
			Email:      "ada@example.com",
			Message:    "First line\nsecond line",
			Status:     outbox.StatusSent,
			StatusCode: 200,
			CreatedAt:  fixedNow.Add(-5 * time.Minute).Unix(),
		},
		{
			ID:         "01HBBB",
			Source:     "http",
			Name:       "Bob",
			Email:      "bob@example.com",
			Message:    strings.Repeat("long ", 40),
			Status:     outbox.StatusFailed,
			StatusCode: 500,
			Error:      "submission failed: 500",
			CreatedAt:  fixedNow.Add(-2 * time.Hour).Unix(),
		},
	}
}

func newPlain(t *testing.T, opts FormatterOptions) *PlainFormatter {
	t.Helper()
	f, err := NewPlainFormatter(opts)
	require.NoError(t, err)
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPlain(t, DefaultFormatterOptions()).Format(&buf, testEntries()))

	out := buf.String()
	assert.Contains(t, out, "[1] Ada <ada@example.com> sent (200) 5 minutes ago")
	assert.Contains(t, out, "    First line second line\n")
	assert.Contains(t, out, "[2] Bob <bob@example.com> failed (500) 2 hours ago")
	assert.Contains(t, out, "    error: submission failed: 500")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(strings.TrimPrefix(line, "    "))), 80)
	}
}

func TestPlainFormatter_Template(t *testing.T) {
	var buf bytes.Buffer
	f := newPlain(t, FormatterOptions{Template: "{{.Index}} {{.Entry.Name}} {{truncate .Entry.Email 6}} {{.RelativeTime}}\n"})
	require.NoError(t, f.Format(&buf, testEntries()[:1]))

	assert.Equal(t, "1 Ada ada... 5 minutes ago\n", buf.String())
}

func TestPlainFormatter_BadTemplate(t *testing.T) {
	_, err := NewPlainFormatter(FormatterOptions{Template: "{{.Index"})
	assert.Error(t, err)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, testEntries()))

	var decoded []outbox.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, testEntries(), decoded)

	buf.Reset()
	require.NoError(t, (&JSONFormatter{}).Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, testEntries()))

	assert.Contains(t, buf.String(), "email: ada@example.com")

	var decoded []outbox.Entry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, "01HBBB", decoded[1].ID)
}

func TestIDsFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatIDs, DefaultFormatterOptions())
	require.NoError(t, err)
	require.NoError(t, f.Format(&buf, testEntries()))

	assert.Equal(t, "01HAAA\n01HBBB\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    FormatType
		wantErr bool
	}{
		{"", FormatPlain, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"ids", FormatIDs, false},
		{"dmenu", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatField(t *testing.T) {
	e := testEntries()[0]

	assert.Equal(t, "01HAAA", FormatField(&e, "id"))
	assert.Equal(t, "ada@example.com", FormatField(&e, "EMAIL"))
	assert.Equal(t, "sent", FormatField(&e, "status"))
	assert.Equal(t, e.Message, FormatField(&e, "unknown"))
	assert.Equal(t, fixedNow.Add(-5*time.Minute).Format(time.RFC3339), FormatField(&e, "time"))
}
