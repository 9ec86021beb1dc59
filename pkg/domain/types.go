package domain

import "time"

// VideoIDLength is the length of a platform video id.
const VideoIDLength = 11

// SentinelLang marks a video whose captions could not be extracted.
const SentinelLang = ""

// QueueItem is a pending request to ingest captions of one video for one
// user. The worker deletes it as soon as processing starts.
type QueueItem struct {
	ID        int64     `json:"id"`
	VideoID   string    `json:"videoId"`
	Title     string    `json:"title"`
	ChannelID string    `json:"channelId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewQueueItem is the payload posted by clients reporting a watched video.
type NewQueueItem struct {
	VideoTitle string `json:"videoTitle"`
	VideoID    string `json:"videoId"`
	ChannelID  string `json:"channelId"`
}

// Video is the single stored row for a platform video. Lang is SentinelLang
// when captions could not be extracted.
type Video struct {
	ID        int64     `json:"id"`
	VideoID   string    `json:"videoId"`
	Title     string    `json:"title"`
	ChannelID string    `json:"channelId"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewVideo is an insert payload. UserID is granted ownership of the row.
type NewVideo struct {
	VideoID   string
	Title     string
	ChannelID string
	Lang      string
	UserID    int64
}

// UserVideoRelation grants a user access to a stored video. VideoID is the
// Video row id.
type UserVideoRelation struct {
	UserID  int64 `json:"userId"`
	VideoID int64 `json:"videoId"`
}

// SubtitlePhrase is one timed caption line. From and Duration are decimal
// seconds as they appear in the transcript.
type SubtitlePhrase struct {
	From     string `json:"from"`
	Duration string `json:"duration"`
	Text     string `json:"text"`
	VideoID  int64  `json:"videoId"`
}

// QueueItemFromNew builds the queue row for a reported video.
func QueueItemFromNew(item NewQueueItem, userID int64) QueueItem {
	return QueueItem{
		VideoID:   item.VideoID,
		Title:     item.VideoTitle,
		ChannelID: item.ChannelID,
		UserID:    userID,
	}
}

// ToNew converts a queue row back into the shape used for re-enqueueing.
func (q QueueItem) ToNew() NewQueueItem {
	return NewQueueItem{
		VideoTitle: q.Title,
		VideoID:    q.VideoID,
		ChannelID:  q.ChannelID,
	}
}

// ValidVideoID reports whether id looks like a platform video id.
func ValidVideoID(id string) bool {
	if len(id) != VideoIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
