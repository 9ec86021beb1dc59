package domain

import "testing"

func TestValidVideoID(t *testing.T) {
	cases := map[string]bool{
		"abc12345678":  true,
		"dQw4w9WgXcQ":  true,
		"a-b_c-d_e-f":  true,
		"short":        false,
		"abc1234567!":  false,
		"":             false,
		"abc123456789": false,
	}
	for id, want := range cases {
		if got := ValidVideoID(id); got != want {
			t.Fatalf("ValidVideoID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestQueueItemRoundTripKeepsFields(t *testing.T) {
	item := QueueItemFromNew(NewQueueItem{VideoTitle: "T", VideoID: "abc12345678", ChannelID: "/@c"}, 7)
	if item.UserID != 7 || item.Title != "T" {
		t.Fatalf("unexpected queue item: %+v", item)
	}
	back := item.ToNew()
	if back.VideoTitle != "T" || back.VideoID != "abc12345678" || back.ChannelID != "/@c" {
		t.Fatalf("unexpected new item: %+v", back)
	}
}
