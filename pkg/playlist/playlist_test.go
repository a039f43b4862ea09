package playlist

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWrap(target string) string {
	return "/api/stream?url=" + url.QueryEscape(target)
}

func TestParseSingleChannel(t *testing.T) {
	text := "#EXTINF:-1 tvg-logo=\"http://x/logo.png\",Channel One\nhttp://x/stream1.ts\n"

	channels := Parse(text, testWrap)
	require.Len(t, channels, 1)

	ch := channels[0]
	assert.Equal(t, "Channel One", ch.Name)
	assert.Equal(t, "http://x/logo.png", ch.Attributes["tvg-logo"])
	assert.Equal(t, "http://x/stream1.ts", ch.URL)
	assert.Equal(t, "/api/stream?url=http%3A%2F%2Fx%2Fstream1.ts", ch.StreamURL)
}

func TestParseStreamURLRoundTrip(t *testing.T) {
	channels := Parse("#EXTINF:-1,A\nhttp://example.com/a.ts\n", testWrap)
	require.Len(t, channels, 1)

	parsed, err := url.Parse(channels[0].StreamURL)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/a.ts", parsed.Query().Get("url"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantCount int
		wantNames []string
	}{
		{
			name:      "empty input",
			text:      "",
			wantCount: 0,
		},
		{
			name:      "header only",
			text:      "#EXTM3U\n",
			wantCount: 0,
		},
		{
			name: "multiple channels keep input order",
			text: "#EXTM3U\n" +
				"#EXTINF:-1 group-title=\"News\",First\n" +
				"http://x/1.ts\n" +
				"#EXTINF:-1,Second\n" +
				"http://x/2.ts\n",
			wantCount: 2,
			wantNames: []string{"First", "Second"},
		},
		{
			name: "blank lines and comments between tag and URL",
			text: "#EXTINF:-1,Spaced\n" +
				"\n" +
				"# a stray comment\n" +
				"http://x/3.ts\n",
			wantCount: 1,
			wantNames: []string{"Spaced"},
		},
		{
			name: "consecutive EXTINF lines, last wins",
			text: "#EXTINF:-1,Stale\n" +
				"#EXTINF:-1,Fresh\n" +
				"http://x/4.ts\n",
			wantCount: 1,
			wantNames: []string{"Fresh"},
		},
		{
			name:      "URL with no pending record is dropped",
			text:      "http://x/orphan.ts\n#EXTINF:-1,Kept\nhttp://x/5.ts\n",
			wantCount: 1,
			wantNames: []string{"Kept"},
		},
		{
			name:      "trailing EXTINF with no URL produces nothing",
			text:      "#EXTINF:-1,Dangling\n",
			wantCount: 0,
		},
		{
			name:      "missing name defaults to Unknown",
			text:      "#EXTINF:-1\nhttp://x/6.ts\n",
			wantCount: 1,
			wantNames: []string{"Unknown"},
		},
		{
			name:      "empty name after comma defaults to Unknown",
			text:      "#EXTINF:-1,   \nhttp://x/7.ts\n",
			wantCount: 1,
			wantNames: []string{"Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := Parse(tt.text, testWrap)
			require.Len(t, channels, tt.wantCount)
			for i, want := range tt.wantNames {
				assert.Equal(t, want, channels[i].Name)
			}
		})
	}
}

func TestParseAttributes(t *testing.T) {
	text := `#EXTINF:-1 tvg-id="one.tv" tvg-logo="http://x/l.png" group-title="Movies & More",One TV` + "\nhttp://x/one.ts\n"

	channels := Parse(text, testWrap)
	require.Len(t, channels, 1)

	assert.Equal(t, map[string]string{
		"tvg-id":      "one.tv",
		"tvg-logo":    "http://x/l.png",
		"group-title": "Movies & More",
	}, channels[0].Attributes)
}
