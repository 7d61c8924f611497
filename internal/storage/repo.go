package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

const maxUsernameLen = 100

// AddFeedback stores one feedback entry. The username is sanitized
// before storage; pass nil when the user has none.
func (s *Store) AddFeedback(ctx context.Context, userID int64, username *string, text string) error {
	q := s.sql.Insert("feedback").
		Columns("user_id", "username", "feedback_text", "created_at").
		Values(userID, sanitizeUsername(username), text, nowExpr(s.driver))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build add feedback query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback entries, newest first.
func (s *Store) ListFeedback(ctx context.Context) ([]Feedback, error) {
	return s.listFeedback(ctx, nil)
}

// ListUserFeedback returns one user's feedback entries, newest first.
func (s *Store) ListUserFeedback(ctx context.Context, userID int64) ([]Feedback, error) {
	return s.listFeedback(ctx, sq.Eq{"user_id": userID})
}

func (s *Store) listFeedback(ctx context.Context, where sq.Sqlizer) ([]Feedback, error) {
	q := s.sql.Select("id", "user_id", "username", "feedback_text", "created_at").
		From("feedback").
		OrderBy("created_at DESC", "id DESC")
	if where != nil {
		q = q.Where(where)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list feedback query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Username, &f.Text, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback rows: %w", err)
	}
	return out, nil
}

// FeedbackStats aggregates the feedback table for the admin report.
func (s *Store) FeedbackStats(ctx context.Context, now time.Time) (FeedbackStats, error) {
	all, err := s.ListFeedback(ctx)
	if err != nil {
		return FeedbackStats{}, err
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	users := map[int64]struct{}{}
	handles := map[string]struct{}{}

	stats := FeedbackStats{Total: len(all)}
	for _, f := range all {
		users[f.UserID] = struct{}{}
		if f.Username != nil && strings.TrimSpace(*f.Username) != "" {
			stats.WithUsername++
			handles[strings.TrimSpace(*f.Username)] = struct{}{}
		}
		if f.CreatedAt.After(weekAgo) {
			stats.LastWeek++
		}
	}
	stats.UniqueUsers = len(users)
	stats.UniqueHandles = len(handles)
	return stats, nil
}

// ExportCSV writes every feedback entry to w as CSV and reports how
// many rows were exported.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.ListFeedback(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "User ID", "Username", "Feedback", "Timestamp"}); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range all {
		username := "Unknown"
		if f.Username != nil && strings.TrimSpace(*f.Username) != "" {
			username = strings.TrimSpace(*f.Username)
		}
		record := []string{
			strconv.FormatInt(f.ID, 10),
			strconv.FormatInt(f.UserID, 10),
			username,
			f.Text,
			f.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(all), nil
}

func sanitizeUsername(username *string) *string {
	if username == nil {
		return nil
	}
	v := strings.TrimSpace(*username)
	if v == "" {
		return nil
	}
	if runes := []rune(v); len(runes) > maxUsernameLen {
		v = string(runes[:maxUsernameLen])
	}
	return &v
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
