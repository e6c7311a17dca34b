package dto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feral-file/lt-indexer/internal/store"
)

// ErrInvalidCursor is returned for cursors that were not produced by EncodeTradeCursor
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeTradeCursor encodes a trade position as base64("<unix seconds>|<id>")
func EncodeTradeCursor(timestamp time.Time, id string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%s", timestamp.Unix(), id)))
}

// DecodeTradeCursor reverses EncodeTradeCursor
func DecodeTradeCursor(cursor string) (*store.TradeCursor, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected 2 fields", ErrInvalidCursor)
	}

	seconds, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return &store.TradeCursor{Timestamp: time.Unix(seconds, 0).UTC(), ID: parts[1]}, nil
}
