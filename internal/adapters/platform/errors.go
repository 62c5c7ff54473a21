package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apihttp "github.com/ohmynofan/questline-bot/internal/adapters/http"
)

const (
	alreadyCompletedMarker = "already completed"
	dailyLimitMarker       = "daily limit"
)

// RemoteError is an application-level failure reported by the platform.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Code    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s (%s)", e.Op, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

// IsDailyLimit reports whether err is the platform refusing more actions
// for today.
func IsDailyLimit(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return strings.Contains(strings.ToLower(re.Message), dailyLimitMarker)
	}
	return false
}

func isAlreadyCompleted(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return strings.Contains(strings.ToLower(re.Message), alreadyCompletedMarker)
	}
	return false
}

// remoteError converts a transport error into a *RemoteError when the
// platform answered with a status code. Other errors pass through.
func remoteError(op string, err error) error {
	var httpErr *apihttp.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	_ = json.Unmarshal(httpErr.Body, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(httpErr.Body))
	}
	if msg == "" {
		msg = httpErr.Status
	}
	return &RemoteError{Op: op, Status: httpErr.StatusCode, Message: msg, Code: body.Code}
}
