package model

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	QuestStatusCompleted = "completed"
	QuestStatusClaimed   = "claimed"
)

type Quest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UserQuestRecord is one remote record of a quest attempt.
type UserQuestRecord struct {
	QuestID   string `json:"questId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	Credits   int64  `json:"credits"`
}

// IsDone reports whether the record counts as a completion.
func (r UserQuestRecord) IsDone() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case QuestStatusCompleted, QuestStatusClaimed:
		return true
	}
	return false
}

// Day returns the UTC date portion (YYYY-MM-DD) of CreatedAt.
func (r UserQuestRecord) Day() string {
	raw := strings.TrimSpace(r.CreatedAt)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC().Format(DateLayout)
	}
	if len(raw) >= len(DateLayout) {
		return raw[:len(DateLayout)]
	}
	return raw
}

// QuestSubmission is the platform's answer to a quest action.
type QuestSubmission struct {
	QuestID string          `json:"questId"`
	Status  string          `json:"status"`
	Credits int64           `json:"credits"`
	Data    json.RawMessage `json:"data,omitempty"`
	// AlreadyDone is set when the platform answered "already completed"
	// and the submission was normalized into a completed record.
	AlreadyDone bool `json:"-"`
}

// QuestResult is what an account run reports per completed quest.
type QuestResult struct {
	QuestID string
	Title   string
	Status  string
	Credits int64
}

const DateLayout = "2006-01-02"

// Today returns the current UTC date string.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}
