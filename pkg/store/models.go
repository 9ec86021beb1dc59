package store

import "time"

// GORM models used for persistence. Table names match the tables shared with
// the API server.
type QueueItemModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	VideoID   string    `gorm:"size:11;not null;index"`
	Title     string    `gorm:"not null"`
	ChannelID string    `gorm:"not null"`
	UserID    int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (QueueItemModel) TableName() string { return "queue" }

type VideoModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	VideoID   string    `gorm:"size:11;not null;uniqueIndex"`
	Title     string    `gorm:"not null"`
	ChannelID string    `gorm:"not null"`
	Lang      string    `gorm:"size:2;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (VideoModel) TableName() string { return "videos" }

type UserVideoRelationModel struct {
	UserID  int64 `gorm:"primaryKey;autoIncrement:false"`
	VideoID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (UserVideoRelationModel) TableName() string { return "users_videos_relation" }

type SubtitlePhraseModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	From     string `gorm:"column:from;size:20;not null"`
	Duration string `gorm:"size:20;not null"`
	Text     string `gorm:"type:text;not null"`
	VideoID  int64  `gorm:"not null;index"`
}

func (SubtitlePhraseModel) TableName() string { return "subtitle_phrases" }
