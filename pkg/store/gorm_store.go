package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"yourarch/pkg/domain"
)

const migrateLockID int64 = 51291140

var (
	// ErrVideoNotFound is returned when a relation targets an unknown video.
	ErrVideoNotFound = errors.New("store: video not found")
	// ErrVideoExists is returned when a video row for the platform id is
	// already stored. Nothing is written in that case.
	ErrVideoExists = errors.New("store: video already exists")
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return openGormStore(db)
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func openGormStore(db *gorm.DB) (*GormStore, error) {
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&QueueItemModel{}, &VideoModel{}, &UserVideoRelationModel{}, &SubtitlePhraseModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	var err error
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// withMigrationLock serialises migrations of workers starting together.
func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DequeueBatch returns up to limit queue items, oldest first. Items stay in
// the queue until DeleteQueueItem.
func (s *GormStore) DequeueBatch(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []QueueItemModel
	if err := s.db.WithContext(ctx).Order("id").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	items := make([]domain.QueueItem, 0, len(models))
	for _, m := range models {
		items = append(items, queueItemFromModel(m))
	}
	return items, nil
}

// DeleteQueueItem removes a queue item. Deleting a missing id is not an error.
func (s *GormStore) DeleteQueueItem(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&QueueItemModel{}, id).Error; err != nil {
		return fmt.Errorf("delete queue item %d: %w", id, err)
	}
	return nil
}

// Enqueue inserts queue items for userID.
func (s *GormStore) Enqueue(ctx context.Context, items []domain.NewQueueItem, userID int64) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]QueueItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, QueueItemModel{
			VideoID:   item.VideoID,
			Title:     item.VideoTitle,
			ChannelID: item.ChannelID,
			UserID:    userID,
			CreatedAt: now,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&models, InsertBatchSize).Error; err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// VideoExists reports whether a Video row exists for the platform id.
func (s *GormStore) VideoExists(ctx context.Context, videoID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&VideoModel{}).Where("video_id = ?", videoID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("video exists: %w", err)
	}
	return count > 0, nil
}

// InsertVideo creates the Video row and the owner relation in one transaction.
func (s *GormStore) InsertVideo(ctx context.Context, v domain.NewVideo) (int64, error) {
	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = insertVideo(tx, v)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertVideoWithPhrases creates the Video, the owner relation and every
// phrase in one transaction.
func (s *GormStore) InsertVideoWithPhrases(ctx context.Context, v domain.NewVideo, phrases []domain.SubtitlePhrase) (int64, error) {
	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = insertVideo(tx, v)
		if err != nil {
			return err
		}
		for i := range phrases {
			phrases[i].VideoID = id
		}
		return insertPhrases(tx, phrases)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertVideo(tx *gorm.DB, v domain.NewVideo) (int64, error) {
	model := VideoModel{
		VideoID:   v.VideoID,
		Title:     v.Title,
		ChannelID: v.ChannelID,
		Lang:      v.Lang,
		CreatedAt: time.Now().UTC(),
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "video_id"}}, DoNothing: true}).Create(&model)
	if res.Error != nil {
		return 0, fmt.Errorf("insert video %s: %w", v.VideoID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("insert video %s: %w", v.VideoID, ErrVideoExists)
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UserVideoRelationModel{UserID: v.UserID, VideoID: model.ID}).Error; err != nil {
		return 0, fmt.Errorf("insert owner relation: %w", err)
	}
	return model.ID, nil
}

// RelationExists reports whether userID owns the video with the platform id.
func (s *GormStore) RelationExists(ctx context.Context, userID int64, videoID string) (bool, error) {
	var count int64
	videoIDs := s.db.Model(&VideoModel{}).Select("id").Where("video_id = ?", videoID)
	err := s.db.WithContext(ctx).Model(&UserVideoRelationModel{}).
		Where("user_id = ? AND video_id IN (?)", userID, videoIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("relation exists: %w", err)
	}
	return count > 0, nil
}

// AssignRelation grants userID access to an existing video. Assigning twice
// is a no-op.
func (s *GormStore) AssignRelation(ctx context.Context, userID int64, videoID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video VideoModel
		if err := tx.Select("id").Where("video_id = ?", videoID).First(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("assign relation %s: %w", videoID, ErrVideoNotFound)
			}
			return fmt.Errorf("assign relation %s: %w", videoID, err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&UserVideoRelationModel{UserID: userID, VideoID: video.ID}).Error; err != nil {
			return fmt.Errorf("assign relation %s: %w", videoID, err)
		}
		return nil
	})
}

// InsertSubtitlePhrases stores phrases in batches.
func (s *GormStore) InsertSubtitlePhrases(ctx context.Context, phrases []domain.SubtitlePhrase) error {
	return insertPhrases(s.db.WithContext(ctx), phrases)
}

func insertPhrases(tx *gorm.DB, phrases []domain.SubtitlePhrase) error {
	if len(phrases) == 0 {
		return nil
	}
	models := make([]SubtitlePhraseModel, 0, len(phrases))
	for _, p := range phrases {
		models = append(models, SubtitlePhraseModel{
			From:     p.From,
			Duration: p.Duration,
			Text:     p.Text,
			VideoID:  p.VideoID,
		})
	}
	if err := tx.CreateInBatches(&models, InsertBatchSize).Error; err != nil {
		return fmt.Errorf("insert subtitle phrases: %w", err)
	}
	return nil
}

func queueItemFromModel(m QueueItemModel) domain.QueueItem {
	return domain.QueueItem{
		ID:        m.ID,
		VideoID:   m.VideoID,
		Title:     m.Title,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}
