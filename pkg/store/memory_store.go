package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"yourarch/pkg/domain"
)

// Write operation names recorded by MemoryStore.
const (
	OpDeleteQueueItem = "delete_queue_item"
	OpEnqueue         = "enqueue"
	OpInsertVideo     = "insert_video"
	OpAssignRelation  = "assign_relation"
	OpInsertPhrases   = "insert_subtitle_phrases"
)

type relationKey struct {
	userID  int64
	videoID int64
}

// MemoryStore keeps everything in-process. It backs tests and dry runs and
// records every write so callers can assert on side effects.
type MemoryStore struct {
	mu        sync.RWMutex
	queue     map[int64]domain.QueueItem
	videos    map[string]domain.Video // key: platform id
	relations map[relationKey]struct{}
	phrases   []domain.SubtitlePhrase
	writes    []string
	failures  map[string]error
	nextQueue int64
	nextVideo int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queue:     make(map[int64]domain.QueueItem),
		videos:    make(map[string]domain.Video),
		relations: make(map[relationKey]struct{}),
		failures:  make(map[string]error),
	}
}

// FailOn makes the named write operation return err.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MemoryStore) fail(op string) error {
	if err := m.failures[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *MemoryStore) record(op string) error {
	if err := m.fail(op); err != nil {
		return err
	}
	m.writes = append(m.writes, op)
	return nil
}

func (m *MemoryStore) DequeueBatch(_ context.Context, limit int) ([]domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	items := make([]domain.QueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) DeleteQueueItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpDeleteQueueItem); err != nil {
		return err
	}
	delete(m.queue, id)
	return nil
}

func (m *MemoryStore) Enqueue(_ context.Context, items []domain.NewQueueItem, userID int64) error {
	if len(items) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpEnqueue); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, item := range items {
		m.nextQueue++
		q := domain.QueueItemFromNew(item, userID)
		q.ID = m.nextQueue
		q.CreatedAt = now
		m.queue[q.ID] = q
	}
	return nil
}

func (m *MemoryStore) VideoExists(_ context.Context, videoID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.videos[videoID]
	return ok, nil
}

func (m *MemoryStore) InsertVideo(_ context.Context, v domain.NewVideo) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpInsertVideo); err != nil {
		return 0, err
	}
	id, err := m.insertVideoLocked(v)
	if err != nil {
		return 0, err
	}
	m.writes = append(m.writes, OpInsertVideo)
	return id, nil
}

// InsertVideoWithPhrases stores the video, its owner and phrases together.
func (m *MemoryStore) InsertVideoWithPhrases(_ context.Context, v domain.NewVideo, phrases []domain.SubtitlePhrase) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpInsertVideo); err != nil {
		return 0, err
	}
	if err := m.fail(OpInsertPhrases); err != nil {
		return 0, err
	}
	id, err := m.insertVideoLocked(v)
	if err != nil {
		return 0, err
	}
	m.writes = append(m.writes, OpInsertVideo)
	if len(phrases) > 0 {
		m.writes = append(m.writes, OpInsertPhrases)
		for _, p := range phrases {
			p.VideoID = id
			m.phrases = append(m.phrases, p)
		}
	}
	return id, nil
}

func (m *MemoryStore) insertVideoLocked(v domain.NewVideo) (int64, error) {
	if _, exists := m.videos[v.VideoID]; exists {
		return 0, fmt.Errorf("insert video %s: %w", v.VideoID, ErrVideoExists)
	}
	m.nextVideo++
	m.videos[v.VideoID] = domain.Video{
		ID:        m.nextVideo,
		VideoID:   v.VideoID,
		Title:     v.Title,
		ChannelID: v.ChannelID,
		Lang:      v.Lang,
		CreatedAt: time.Now().UTC(),
	}
	m.relations[relationKey{userID: v.UserID, videoID: m.nextVideo}] = struct{}{}
	return m.nextVideo, nil
}

func (m *MemoryStore) RelationExists(_ context.Context, userID int64, videoID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	video, ok := m.videos[videoID]
	if !ok {
		return false, nil
	}
	_, ok = m.relations[relationKey{userID: userID, videoID: video.ID}]
	return ok, nil
}

func (m *MemoryStore) AssignRelation(_ context.Context, userID int64, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	video, ok := m.videos[videoID]
	if !ok {
		return fmt.Errorf("assign relation %s: %w", videoID, ErrVideoNotFound)
	}
	if err := m.record(OpAssignRelation); err != nil {
		return err
	}
	m.relations[relationKey{userID: userID, videoID: video.ID}] = struct{}{}
	return nil
}

func (m *MemoryStore) InsertSubtitlePhrases(_ context.Context, phrases []domain.SubtitlePhrase) error {
	if len(phrases) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpInsertPhrases); err != nil {
		return err
	}
	m.phrases = append(m.phrases, phrases...)
	return nil
}

// Writes returns the recorded write operations in order.
func (m *MemoryStore) Writes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.writes...)
}

// Videos returns stored videos ordered by id.
func (m *MemoryStore) Videos() []domain.Video {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Video, 0, len(m.videos))
	for _, v := range m.videos {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Video returns the video stored for a platform id.
func (m *MemoryStore) Video(videoID string) (domain.Video, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[videoID]
	return v, ok
}

// Phrases returns phrases stored for a video row id.
func (m *MemoryStore) Phrases(videoID int64) []domain.SubtitlePhrase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.SubtitlePhrase
	for _, p := range m.phrases {
		if p.VideoID == videoID {
			res = append(res, p)
		}
	}
	return res
}

// Relations returns every user/video relation ordered by user then video.
func (m *MemoryStore) Relations() []domain.UserVideoRelation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UserVideoRelation, 0, len(m.relations))
	for k := range m.relations {
		res = append(res, domain.UserVideoRelation{UserID: k.userID, VideoID: k.videoID})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UserID != res[j].UserID {
			return res[i].UserID < res[j].UserID
		}
		return res[i].VideoID < res[j].VideoID
	})
	return res
}

// QueueLen returns the number of pending queue items.
func (m *MemoryStore) QueueLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}
