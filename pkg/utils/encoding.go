package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// FormValues turns a struct tagged with `url:"..."` into form values.
func FormValues(params interface{}) (url.Values, error) {
	v, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("encode form values: %w", err)
	}
	return v, nil
}

// BeautifyJSON indents a JSON document for debug logs. Anything that is not
// JSON comes back unchanged.
func BeautifyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// GenerateRandomHex returns size random bytes, hex encoded.
func GenerateRandomHex(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("random size must be positive")
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ShortenAddress keeps the first six and last four characters.
func ShortenAddress(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
