package app

import (
	"context"
	"fmt"
	"strings"

	"yourarch/pkg/domain"
	"yourarch/pkg/store"
)

// EnqueueItems validates reported videos and queues them for userID in
// chunks. It returns the number of queued items.
func (a *App) EnqueueItems(ctx context.Context, items []domain.NewQueueItem, userID int64) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("userId required")
	}
	clean := make([]domain.NewQueueItem, 0, len(items))
	for i, item := range items {
		item.VideoID = strings.TrimSpace(item.VideoID)
		if !domain.ValidVideoID(item.VideoID) {
			return 0, fmt.Errorf("item %d: invalid videoId %q", i, item.VideoID)
		}
		clean = append(clean, item)
	}
	for start := 0; start < len(clean); start += store.InsertBatchSize {
		end := min(start+store.InsertBatchSize, len(clean))
		if err := a.store.Enqueue(ctx, clean[start:end], userID); err != nil {
			return start, fmt.Errorf("enqueue items %d-%d: %w", start, end-1, err)
		}
	}
	return len(clean), nil
}
