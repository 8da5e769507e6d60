package http

import (
	"net/http"
	"strings"
	"time"

	apperrors "carrental/pkg/errors"
)

const DateLayout = "2006-01-02"

// RequiredQuery returns the trimmed query parameter or an INVALID_INPUT error.
func RequiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", apperrors.InvalidInput("missing required query parameter: " + name)
	}
	return v, nil
}

// ParseDate accepts either a calendar date (YYYY-MM-DD) or an RFC3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
