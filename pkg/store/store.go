package store

import (
	"context"

	"yourarch/pkg/domain"
)

// Store is the persistence contract of the caption worker. Video ids in
// VideoExists, RelationExists and AssignRelation are platform ids.
type Store interface {
	// queue
	DequeueBatch(ctx context.Context, limit int) ([]domain.QueueItem, error)
	DeleteQueueItem(ctx context.Context, id int64) error
	Enqueue(ctx context.Context, items []domain.NewQueueItem, userID int64) error

	// videos
	VideoExists(ctx context.Context, videoID string) (bool, error)
	InsertVideo(ctx context.Context, v domain.NewVideo) (int64, error)

	// relations
	RelationExists(ctx context.Context, userID int64, videoID string) (bool, error)
	AssignRelation(ctx context.Context, userID int64, videoID string) error

	// phrases
	InsertSubtitlePhrases(ctx context.Context, phrases []domain.SubtitlePhrase) error
}

// CaptionWriter is an optional capability for stores that can persist a video
// and its phrases atomically. Phrase VideoIDs are filled in by the store.
type CaptionWriter interface {
	InsertVideoWithPhrases(ctx context.Context, v domain.NewVideo, phrases []domain.SubtitlePhrase) (int64, error)
}

// InsertBatchSize bounds rows per INSERT statement.
const InsertBatchSize = 100
