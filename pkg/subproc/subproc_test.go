package subproc

import (
	"context"
	"testing"
	"time"

	"iptv-bridge-go/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return NewRunner(logging.New("error", false, nil))
}

func TestRunCapturesOutput(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2"}, nil, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestRunEnvOverride(t *testing.T) {
	t.Setenv("SUBPROC_TEST_VAR", "inherited")

	r := newTestRunner(t)
	res, err := r.Run(context.Background(), "sh", []string{"-c", "printf '%s' \"$SUBPROC_TEST_VAR\""},
		map[string]string{"SUBPROC_TEST_VAR": "overridden"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "overridden", res.Stdout)
}

func TestRunBinaryMissing(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil, 5*time.Second)
	assert.ErrorIs(t, err, ErrBinaryMissing)
}

func TestRunNonzeroExit(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, nil, 5*time.Second)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "boom")
	// Captured output still available for diagnostics
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner(t)
	start := time.Now()
	_, err := r.Run(context.Background(), "sh", []string{"-c", "sleep 10"}, nil, 100*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandExists(t *testing.T) {
	r := newTestRunner(t)
	assert.True(t, r.CommandExists("sh"))
	assert.False(t, r.CommandExists("definitely-not-a-real-binary-xyz"))
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain text output",
			text: "Playing https://cdn.example.com/video.m3u8 now",
			want: []string{"https://cdn.example.com/video.m3u8"},
		},
		{
			name: "json string leaves",
			text: `{"sources":[{"file":"https://cdn.example.com/a.mp4"},{"file":"https://cdn.example.com/b.m3u8"}]}`,
			want: []string{"https://cdn.example.com/a.mp4", "https://cdn.example.com/b.m3u8"},
		},
		{
			name: "json embedded in log noise",
			text: "INFO starting\n{\"stream\":{\"url\":\"https://x/v.mkv\"}}\nINFO done",
			want: []string{"https://x/v.mkv"},
		},
		{
			name: "raw and json passes deduplicate",
			text: `found https://x/v.m3u8 {"url":"https://x/v.m3u8","alt":"https://y/v.mp4"}`,
			want: []string{"https://x/v.m3u8", "https://y/v.mp4"},
		},
		{
			name: "malformed json falls back to raw pass",
			text: `{"broken: https://x/v.mp4`,
			want: []string{"https://x/v.mp4"},
		},
		{
			name: "nothing playable",
			text: "error: no results found",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}
