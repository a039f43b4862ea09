// Package playlist parses M3U playlists into channel records.
package playlist

import (
	"regexp"
	"strings"
)

// Channel is a single playlist entry. StreamURL routes playback through the
// local stream relay and is always derived from URL by the wrap function
// given to Parse.
type Channel struct {
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	StreamURL  string            `json:"streamUrl"`
	Attributes map[string]string `json:"attributes"`
}

var extinfAttrPattern = regexp.MustCompile(`([A-Za-z0-9-]+)="([^"]*)"`)

// Parse scans M3U text into an ordered channel list. An #EXTINF line opens a
// pending record; the next non-comment, non-blank line closes it with the
// stream URL. A URL line with no pending record is dropped. Consecutive
// #EXTINF lines overwrite each other, so only the last one before a URL
// survives.
func Parse(text string, wrap func(string) string) []Channel {
	channels := make([]Channel, 0)
	var pending *Channel

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXTINF") {
			pending = &Channel{
				Name:       extinfName(line),
				Attributes: extinfAttributes(line),
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		if pending == nil {
			continue
		}

		pending.URL = line
		pending.StreamURL = wrap(line)
		channels = append(channels, *pending)
		pending = nil
	}

	return channels
}

// extinfName returns the display name after the first comma, or "Unknown".
func extinfName(line string) string {
	idx := strings.Index(line, ",")
	if idx < 0 {
		return "Unknown"
	}
	name := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return "Unknown"
	}
	return name
}

// extinfAttributes collects every key="value" pair on the tag line.
func extinfAttributes(line string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range extinfAttrPattern.FindAllStringSubmatch(line, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}
