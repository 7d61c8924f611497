package storage

import "time"

type Feedback struct {
	ID        int64
	UserID    int64
	Username  *string
	Text      string
	CreatedAt time.Time
}

// FeedbackStats summarizes the feedback table for the admin report.
type FeedbackStats struct {
	Total         int
	LastWeek      int
	UniqueUsers   int
	WithUsername  int
	UniqueHandles int
}
