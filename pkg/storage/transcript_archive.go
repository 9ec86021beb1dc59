package storage

import (
	"context"
	"fmt"
	"strings"
)

const transcriptContentType = "text/xml; charset=utf-8"

// TranscriptKey is the object key of a raw transcript.
func TranscriptKey(videoID, lang string) string {
	return fmt.Sprintf("transcripts/%s/%s.xml", videoID, lang)
}

// TranscriptArchive keeps the raw caption payloads so phrases can be
// re-derived without hitting the platform again.
type TranscriptArchive struct {
	store ObjectStore
}

func NewTranscriptArchive(store ObjectStore) *TranscriptArchive {
	return &TranscriptArchive{store: store}
}

// Save uploads transcript and returns its key.
func (a *TranscriptArchive) Save(ctx context.Context, videoID, lang, transcript string) (string, error) {
	key := TranscriptKey(videoID, lang)
	if err := a.store.Put(ctx, key, strings.NewReader(transcript), int64(len(transcript)), transcriptContentType); err != nil {
		return "", fmt.Errorf("archive transcript: %w", err)
	}
	return key, nil
}
