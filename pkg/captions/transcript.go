package captions

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	startAttrRE = regexp.MustCompile(`start="([\d.]+)"`)
	durAttrRE   = regexp.MustCompile(`dur="([\d.]+)"`)
)

// Line is one timed caption line. Times are decimal seconds as sent by the
// platform.
type Line struct {
	From     string `json:"from"`
	Duration string `json:"duration"`
	Text     string `json:"text"`
}

// ParseLines splits a timedtext transcript into lines in document order.
// Segments without timing attributes or without visible text are dropped.
func ParseLines(raw string) []Line {
	segments := strings.Split(raw, "</text>")
	lines := make([]Line, 0, len(segments))
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		start := startAttrRE.FindStringSubmatch(segment)
		dur := durAttrRE.FindStringSubmatch(segment)
		if start == nil || dur == nil {
			continue
		}
		// Transcripts are escaped twice (&amp;#39;), so decode and strip twice.
		text := strings.TrimSpace(plainText(plainText(segment)))
		if text == "" {
			continue
		}
		lines = append(lines, Line{From: start[1], Duration: dur[1], Text: text})
	}
	return lines
}

// plainText drops every tag and returns the entity-decoded text content.
func plainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
