package model

import "time"

// AccountResult is the externally observable outcome of one account run.
type AccountResult struct {
	Index           int
	Address         string
	Proxy           string
	SessionKind     SessionKind
	UserName        string
	Err             error
	QuestErr        error
	CompletedQuests []QuestResult
	StartedAt       time.Time
	FinishedAt      time.Time
}

func (r AccountResult) Credits() int64 {
	var total int64
	for _, q := range r.CompletedQuests {
		total += q.Credits
	}
	return total
}

func (r AccountResult) ErrorString() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.QuestErr != nil:
		return r.QuestErr.Error()
	}
	return ""
}
