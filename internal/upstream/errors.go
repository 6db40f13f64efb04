package upstream

import (
	"errors"
	"fmt"

	"github.com/studiokicks/leaderboard/internal/model"
)

var (
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrBadPayload   = errors.New("upstream: response is not an array of objects")
	ErrLoginFailed  = errors.New("upstream: login failed")
)

// FetchError describes a failed query for one entity type.
// StatusCode is 0 when no response was received.
type FetchError struct {
	Entity     model.EntityType
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Entity, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Entity, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
