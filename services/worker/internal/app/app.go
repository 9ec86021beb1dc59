package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"yourarch/internal/throttle"
	"yourarch/internal/util"
	"yourarch/pkg/captions"
	"yourarch/pkg/domain"
	"yourarch/pkg/store"
)

const (
	defaultBatchSize   = 10
	defaultConcurrency = 2
	defaultIdleWait    = 5 * time.Second
	defaultCooldown    = 30 * time.Second
)

// CaptionSource extracts captions for one video.
type CaptionSource interface {
	Extract(ctx context.Context, videoID string) (captions.Result, error)
}

// TranscriptArchiver keeps raw transcripts. Failures never affect an item.
type TranscriptArchiver interface {
	Save(ctx context.Context, videoID, lang, transcript string) (string, error)
}

// Config holds runtime configuration. Zero durations and sizes use defaults.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Captions    CaptionSource
	Throttle    *throttle.Controller
	Archive     TranscriptArchiver

	// Used to build the default caption client.
	PlatformBaseURL string
	UserAgent       string
	AcceptLanguage  string
	FetchTimeout    time.Duration
	Limiter         captions.Limiter

	BatchSize    int
	Concurrency  int
	IdleWait     time.Duration
	Cooldown     time.Duration
	ThrottleUnit time.Duration
}

// App drains the caption queue.
type App struct {
	store       store.Store
	captions    CaptionSource
	throttle    *throttle.Controller
	archive     TranscriptArchiver
	batchSize   int
	concurrency int
	idleWait    time.Duration
	cooldown    time.Duration
	stats       stats
	sleep       func(ctx context.Context, d time.Duration) error
}

// New constructs the worker with persistence.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	source := cfg.Captions
	if source == nil {
		source = captions.NewClient(captions.Config{
			BaseURL:        cfg.PlatformBaseURL,
			UserAgent:      cfg.UserAgent,
			AcceptLanguage: cfg.AcceptLanguage,
			Timeout:        cfg.FetchTimeout,
			Limiter:        cfg.Limiter,
		})
	}
	controller := cfg.Throttle
	if controller == nil {
		controller = throttle.New(throttle.WithUnit(cfg.ThrottleUnit))
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	idleWait := cfg.IdleWait
	if idleWait <= 0 {
		idleWait = defaultIdleWait
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &App{
		store:       dataStore,
		captions:    source,
		throttle:    controller,
		archive:     cfg.Archive,
		batchSize:   batchSize,
		concurrency: concurrency,
		idleWait:    idleWait,
		cooldown:    cooldown,
		sleep:       throttle.Sleep,
	}, nil
}

// Close releases the store when it owns resources.
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Throttle exposes the shared throttle controller.
func (a *App) Throttle() *throttle.Controller {
	return a.throttle
}

// Run drains the queue until ctx is cancelled. A stop lets in-flight items
// finish their current step. Storage errors end the loop and are returned.
func (a *App) Run(ctx context.Context) error {
	logger := util.LoggerFromContext(ctx)
	logger.Info("caption worker started", "batch_size", a.batchSize, "concurrency", a.concurrency)
	for {
		if ctx.Err() != nil {
			logger.Info("caption worker stopped")
			return nil
		}
		waited, err := a.throttle.Wait(ctx)
		if err != nil || waited > 0 {
			// Re-check the stop signal before polling again.
			continue
		}
		n, err := a.DrainOnce(ctx)
		if err != nil {
			logger.Error("batch aborted", "err", err)
			return err
		}
		if n == 0 {
			logger.Debug("queue empty", "wait", a.idleWait.String())
			_ = a.sleep(ctx, a.idleWait)
		}
	}
}

// DrainOnce processes one batch and returns how many items were dequeued.
func (a *App) DrainOnce(ctx context.Context) (int, error) {
	items, err := a.store.DequeueBatch(ctx, a.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		return 0, fmt.Errorf("dequeue batch: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	a.stats.batches.Add(1)
	return len(items), a.processBatch(ctx, items)
}

// batchScope carries the contexts of one batch. work outlives a stop so that
// in-flight steps complete; it is cancelled when a sibling fails. delay ends
// on either event and bounds deliberate pauses.
type batchScope struct {
	stop  context.Context
	work  context.Context
	delay context.Context
}

func (a *App) processBatch(runCtx context.Context, items []domain.QueueItem) error {
	batchCtx, logger := util.WithLogAttrs(context.WithoutCancel(runCtx), "batch_id", util.NewID())
	logger.Info("processing batch", "items", len(items))

	g, workCtx := errgroup.WithContext(batchCtx)
	g.SetLimit(a.concurrency)

	delayCtx, cancelDelay := context.WithCancel(workCtx)
	defer cancelDelay()
	unregister := context.AfterFunc(runCtx, cancelDelay)
	defer unregister()

	scope := batchScope{stop: runCtx, work: workCtx, delay: delayCtx}
	for _, item := range items {
		g.Go(func() error {
			outcome, err := a.processItem(scope, item)
			a.stats.record(outcome)
			return err
		})
	}
	return g.Wait()
}

// processItem runs the per-item state machine:
// Dequeued -> Deleted -> {Skip | AssignRelation | Extracting} ->
// {Persisted | SentinelPersisted | Requeued}.
func (a *App) processItem(scope batchScope, item domain.QueueItem) (Outcome, error) {
	if scope.stop.Err() != nil || scope.work.Err() != nil {
		return OutcomeNotStarted, nil
	}
	// A sibling hit a 429; leave the item queued for the next cycle.
	if a.throttle.Throttling() {
		return OutcomeNotStarted, nil
	}

	ctx, logger := util.WithLogAttrs(scope.work,
		"video_id", item.VideoID,
		"queue_item_id", item.ID,
		"user_id", item.UserID,
	)
	logger.Info("processing video")

	if err := a.store.DeleteQueueItem(ctx, item.ID); err != nil {
		return OutcomeFailed, err
	}

	exists, err := a.store.VideoExists(ctx, item.VideoID)
	if err != nil {
		return OutcomeFailed, err
	}
	if exists {
		return a.reconcileOwnership(ctx, item)
	}

	res, err := a.captions.Extract(ctx, item.VideoID)
	if err != nil {
		if ctx.Err() != nil {
			return a.requeueInterrupted(ctx, item, err)
		}
		return a.handleExtractError(ctx, item, err)
	}
	a.throttle.Reset(ctx)

	videoRowID, saved, err := a.persist(ctx, item, res)
	switch {
	case errors.Is(err, store.ErrVideoExists):
		// Another item for the same video won the insert.
		return a.reconcileOwnership(ctx, item)
	case err != nil && ctx.Err() != nil:
		return a.requeueInterrupted(ctx, item, err)
	case err != nil:
		return OutcomeFailed, err
	}
	a.archiveTranscript(ctx, item, res)
	logger.Info("captions saved", "lang", res.Lang, "phrases", saved, "video_row_id", videoRowID)

	if err := a.sleep(scope.delay, a.cooldown); err != nil {
		logger.Debug("cooldown interrupted")
	}
	return OutcomePersisted, nil
}

func (a *App) reconcileOwnership(ctx context.Context, item domain.QueueItem) (Outcome, error) {
	logger := util.LoggerFromContext(ctx)
	owned, err := a.store.RelationExists(ctx, item.UserID, item.VideoID)
	if err != nil {
		return OutcomeFailed, err
	}
	if owned {
		logger.Info("video already exists for this user, skipping")
		return OutcomeSkipped, nil
	}
	if err := a.store.AssignRelation(ctx, item.UserID, item.VideoID); err != nil {
		return OutcomeFailed, err
	}
	logger.Info("video already exists, assigned to user")
	return OutcomeAssigned, nil
}

func (a *App) handleExtractError(ctx context.Context, item domain.QueueItem, extractErr error) (Outcome, error) {
	logger := util.LoggerFromContext(ctx)
	if captions.Retryable(extractErr) {
		retryCount := a.throttle.Flag(ctx)
		if err := a.store.Enqueue(ctx, []domain.NewQueueItem{item.ToNew()}, item.UserID); err != nil {
			return OutcomeFailed, fmt.Errorf("requeue %s: %w", item.VideoID, err)
		}
		logger.Warn("throttled, item requeued", "retry_count", retryCount)
		return OutcomeRequeued, nil
	}

	attrs := []any{"err", extractErr}
	var upstream *captions.UpstreamError
	if errors.As(extractErr, &upstream) {
		attrs = append(attrs, "status", upstream.StatusCode, "body", upstream.Body)
	}
	logger.Error("caption extraction failed, storing sentinel", attrs...)

	if _, err := a.store.InsertVideo(ctx, newVideo(item, domain.SentinelLang)); err != nil {
		if errors.Is(err, store.ErrVideoExists) {
			return a.reconcileOwnership(ctx, item)
		}
		return OutcomeFailed, fmt.Errorf("store sentinel %s: %w", item.VideoID, err)
	}
	return OutcomeSentinel, nil
}

// requeueInterrupted puts back an item whose work was cut short by a failing
// sibling. The write does not inherit the batch cancellation.
func (a *App) requeueInterrupted(ctx context.Context, item domain.QueueItem, cause error) (Outcome, error) {
	if err := a.store.Enqueue(context.WithoutCancel(ctx), []domain.NewQueueItem{item.ToNew()}, item.UserID); err != nil {
		return OutcomeFailed, fmt.Errorf("requeue %s: %w", item.VideoID, err)
	}
	util.LoggerFromContext(ctx).Warn("batch cancelled, item requeued", "err", cause)
	return OutcomeNotStarted, nil
}

// persist writes the video and its phrases, atomically when the store
// supports it.
func (a *App) persist(ctx context.Context, item domain.QueueItem, res captions.Result) (int64, int, error) {
	phrases := phrasesFromLines(res.Lines)
	video := newVideo(item, res.Lang)

	if writer, ok := a.store.(store.CaptionWriter); ok {
		id, err := writer.InsertVideoWithPhrases(ctx, video, phrases)
		if err != nil {
			return 0, 0, fmt.Errorf("store captions %s: %w", item.VideoID, err)
		}
		return id, len(phrases), nil
	}

	id, err := a.store.InsertVideo(ctx, video)
	if err != nil {
		return 0, 0, fmt.Errorf("store video %s: %w", item.VideoID, err)
	}
	for i := range phrases {
		phrases[i].VideoID = id
	}
	if err := a.store.InsertSubtitlePhrases(ctx, phrases); err != nil {
		return 0, 0, fmt.Errorf("store phrases %s: %w", item.VideoID, err)
	}
	return id, len(phrases), nil
}

func (a *App) archiveTranscript(ctx context.Context, item domain.QueueItem, res captions.Result) {
	if a.archive == nil || res.Transcript == "" {
		return
	}
	key, err := a.archive.Save(ctx, item.VideoID, res.Lang, res.Transcript)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("transcript archive failed", "err", err)
		return
	}
	util.LoggerFromContext(ctx).Debug("transcript archived", "key", key)
}

func newVideo(item domain.QueueItem, lang string) domain.NewVideo {
	return domain.NewVideo{
		VideoID:   item.VideoID,
		Title:     item.Title,
		ChannelID: item.ChannelID,
		Lang:      lang,
		UserID:    item.UserID,
	}
}

// phrasesFromLines drops empty lines and lower-cases text for search.
func phrasesFromLines(lines []captions.Line) []domain.SubtitlePhrase {
	phrases := make([]domain.SubtitlePhrase, 0, len(lines))
	for _, line := range lines {
		if line.Text == "" {
			continue
		}
		phrases = append(phrases, domain.SubtitlePhrase{
			From:     line.From,
			Duration: line.Duration,
			Text:     strings.ToLower(line.Text),
		})
	}
	return phrases
}
