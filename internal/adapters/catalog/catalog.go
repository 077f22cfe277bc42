// Package catalog looks up playable media for the add-track flow. Results are
// returned to the caller only and never touch room state.
package catalog

import (
	"context"
	"errors"
)

var ErrEmptyQuery = errors.New("empty query")

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type Video struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	URL          string `json:"url"`
	// Duration is the raw ISO-8601 value, Seconds its parsed form.
	Duration string `json:"duration,omitempty"`
	Seconds  int64  `json:"durationSeconds"`
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
