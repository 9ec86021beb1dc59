package captions

import (
	"errors"
	"testing"
)

const watchPageFixture = `<!DOCTYPE html><html><head><title>video</title></head><body>
<script>var ytInitialPlayerResponse = {"responseContext":{"serviceTrackingParams":[{"service":"GFEEDBACK"}]},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://www.youtube.com/api/timedtext?v=Qj0Qx8HpNUo&caps=asr&kind=asr&lang=en","name":{"simpleText":"English (auto-generated)"},"vssId":"a.en","languageCode":"en","kind":"asr","isTranslatable":true,"trackName":""}],"audioTracks":[{"captionTrackIndices":[0]}]}},"videoDetails":{"videoId":"Qj0Qx8HpNUo"}};</script>
</body></html>`

func TestExtractCaptionTracks(t *testing.T) {
	tracks, err := ExtractCaptionTracks(watchPageFixture)
	if err != nil {
		t.Fatalf("extract tracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("len(tracks) = %d, want 1", len(tracks))
	}
	want := Track{
		LanguageCode: "en",
		VssID:        "a.en",
		Kind:         "asr",
		BaseURL:      "https://www.youtube.com/api/timedtext?v=Qj0Qx8HpNUo&caps=asr&kind=asr&lang=en",
	}
	if tracks[0] != want {
		t.Fatalf("tracks[0] = %+v, want %+v", tracks[0], want)
	}
}

func TestExtractCaptionTracksMissingField(t *testing.T) {
	cases := map[string]string{
		"no marker":        "ehehehehehe u pwnd",
		"marker only":      "ehehehehehe u pwnd !!! captionTracks !!!",
		"undecodable json": `{"captionTracks":[{"isTranslatable":true, oops]`,
	}
	for name, page := range cases {
		if _, err := ExtractCaptionTracks(page); !errors.Is(err, ErrMissingCaptionsField) {
			t.Fatalf("%s: err = %v, want ErrMissingCaptionsField", name, err)
		}
	}
}

func TestChooseLanguage(t *testing.T) {
	cases := []struct {
		name   string
		tracks []Track
		want   string
	}{
		{
			name: "manual track matching generated language",
			tracks: []Track{
				{VssID: ".fr", LanguageCode: "fr"},
				{VssID: "a.de", LanguageCode: "de", Kind: "asr"},
				{VssID: ".de", LanguageCode: "de"},
			},
			want: "de",
		},
		{
			name: "no generated track uses first manual",
			tracks: []Track{
				{VssID: ".en", LanguageCode: "yy-and-other-stuff"},
				{VssID: ".fr", LanguageCode: "fr"},
			},
			want: "yy",
		},
		{
			name: "only generated track",
			tracks: []Track{
				{VssID: "a.en", LanguageCode: "zz-and-other-stuff", Kind: "asr"},
			},
			want: "zz",
		},
		{
			name: "generated track without manual match keeps generated language",
			tracks: []Track{
				{VssID: ".fr", LanguageCode: "fr"},
				{VssID: "a.es", LanguageCode: "es", Kind: "asr"},
			},
			want: "es",
		},
	}
	for _, tc := range cases {
		got, err := ChooseLanguage(tc.tracks)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: lang = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestChooseLanguageFailsWithoutLanguage(t *testing.T) {
	if _, err := ChooseLanguage(nil); !errors.Is(err, ErrMissingCaptionsLanguage) {
		t.Fatalf("err = %v, want ErrMissingCaptionsLanguage", err)
	}
	if _, err := ChooseLanguage([]Track{{VssID: ".x"}}); !errors.Is(err, ErrMissingCaptionsLanguage) {
		t.Fatalf("err = %v, want ErrMissingCaptionsLanguage", err)
	}
}

func TestResolveCaptionURLPriority(t *testing.T) {
	cases := []struct {
		name   string
		tracks []Track
		want   string
	}{
		{
			name: "exact manual over generated",
			tracks: []Track{
				{BaseURL: "url1", VssID: "a.zz", Kind: "asr"},
				{BaseURL: "url2", VssID: ".zz"},
			},
			want: "url2",
		},
		{
			name: "generated when no manual",
			tracks: []Track{
				{BaseURL: "url1", VssID: "a.zz", Kind: "asr"},
			},
			want: "url1",
		},
		{
			name: "locale suffixed id",
			tracks: []Track{
				{BaseURL: "url1", VssID: ".yy"},
				{BaseURL: "url2", VssID: ".zz-MY"},
			},
			want: "url2",
		},
		{
			name: "exact generated over locale suffixed",
			tracks: []Track{
				{BaseURL: "url1", VssID: ".zz-MY"},
				{BaseURL: "url2", VssID: "a.zz", Kind: "asr"},
			},
			want: "url2",
		},
		{
			name: "track without url is skipped",
			tracks: []Track{
				{VssID: ".zz"},
				{BaseURL: "url2", VssID: "a.zz", Kind: "asr"},
			},
			want: "url2",
		},
	}
	for _, tc := range cases {
		got, err := ResolveCaptionURL(tc.tracks, "zz")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: url = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveCaptionURLMissing(t *testing.T) {
	if _, err := ResolveCaptionURL(nil, "zz"); !errors.Is(err, ErrMissingLanguageTrack) {
		t.Fatalf("err = %v, want ErrMissingLanguageTrack", err)
	}
	tracks := []Track{{VssID: ".zz"}, {BaseURL: "url", VssID: ".yy"}}
	if _, err := ResolveCaptionURL(tracks, "zz"); !errors.Is(err, ErrMissingLanguageTrack) {
		t.Fatalf("err = %v, want ErrMissingLanguageTrack", err)
	}
}
