package captions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const captionTracksMarker = "captionTracks"

// The object starts at the captionTracks key and runs to the `]` closing the
// array. The trailing `}` is appended before decoding.
var captionTracksRE = regexp.MustCompile(`\{"captionTracks":.*isTranslatable":(?:true|false)[^}]*[^\]]*\]`)

const kindGenerated = "asr"

// Track describes one caption track advertised by a video page.
type Track struct {
	LanguageCode string `json:"languageCode"`
	VssID        string `json:"vssId"`
	Kind         string `json:"kind,omitempty"`
	BaseURL      string `json:"baseUrl"`
}

// Generated reports whether the track is machine generated.
func (t Track) Generated() bool {
	return t.Kind == kindGenerated
}

type captionsPayload struct {
	CaptionTracks []Track `json:"captionTracks"`
}

// ExtractCaptionTracks pulls the caption track list out of a watch page.
func ExtractCaptionTracks(page string) ([]Track, error) {
	if !strings.Contains(page, captionTracksMarker) {
		return nil, fmt.Errorf("%w: marker absent", ErrMissingCaptionsField)
	}
	raw := captionTracksRE.FindString(page)
	if raw == "" {
		return nil, fmt.Errorf("%w: track list not located", ErrMissingCaptionsField)
	}
	var payload captionsPayload
	if err := json.Unmarshal([]byte(raw+"}"), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode track list: %v", ErrMissingCaptionsField, err)
	}
	return payload.CaptionTracks, nil
}

// ChooseLanguage picks the 2-letter language to fetch. A manual track in the
// language of the generated track wins; without a generated track the first
// manual track is used; otherwise the generated track's own language.
func ChooseLanguage(tracks []Track) (string, error) {
	var generated *Track
	for i := range tracks {
		if tracks[i].Generated() {
			generated = &tracks[i]
			break
		}
	}

	lang := ""
	if generated != nil {
		for _, t := range tracks {
			if !t.Generated() && t.LanguageCode == generated.LanguageCode {
				lang = t.LanguageCode
				break
			}
		}
		if lang == "" {
			lang = generated.LanguageCode
		}
	} else {
		for _, t := range tracks {
			if !t.Generated() {
				lang = t.LanguageCode
				break
			}
		}
	}

	lang = shortLang(lang)
	if lang == "" {
		return "", ErrMissingCaptionsLanguage
	}
	return lang, nil
}

func shortLang(code string) string {
	code = strings.TrimSpace(code)
	if len(code) > 2 {
		return code[:2]
	}
	return code
}

// ResolveCaptionURL finds the transcript URL for lang. Exact manual ids
// (".en") beat exact generated ids ("a.en"), which beat locale-suffixed ids
// (".en-US"). Tracks without a URL are never chosen.
func ResolveCaptionURL(tracks []Track, lang string) (string, error) {
	if lang == "" {
		return "", ErrMissingLanguageTrack
	}
	manual := "." + lang
	generated := "a." + lang
	matchers := []func(string) bool{
		func(id string) bool { return id == manual },
		func(id string) bool { return id == generated },
		func(id string) bool { return strings.Contains(id, manual) },
	}
	for _, match := range matchers {
		for _, t := range tracks {
			if t.BaseURL != "" && match(t.VssID) {
				return t.BaseURL, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingLanguageTrack, lang)
}
