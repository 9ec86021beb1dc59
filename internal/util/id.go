package util

import "github.com/google/uuid"

// NewID returns a random correlation id for batches and requests.
func NewID() string {
	return uuid.NewString()
}
