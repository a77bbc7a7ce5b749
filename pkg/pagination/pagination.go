// Package pagination produces forward-only, cursor-based pages over an
// ordered index scan.
//
// Rows are ordered by (created_at, id) ascending. When a residual filter
// is present the engine keeps reading the underlying scan until the page
// is full or the scan is exhausted, and the issued cursor points at the
// underlying position of the last returned row, so matching rows are never
// skipped between pages.
package pagination

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
)

const (
	DefaultLimit = 20
	MaxLimit     = 1000

	// minimum rows read per round trip when a residual filter is applied
	filteredBatch = 100
)

// Position is a row's place in the underlying index
type Position struct {
	CreatedAt int64
	ID        string
}

// Request is a page request. An empty cursor starts at the beginning.
type Request struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Page is one window of results
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// Scan describes an ordered index scan and an optional residual filter.
type Scan[T any] struct {
	// Key identifies the index and filter. A cursor issued for one key is
	// rejected by any other.
	Key string

	// Fetch returns up to n rows strictly after the given position (nil
	// means from the start), in index order.
	Fetch func(ctx context.Context, after *Position, n int) ([]T, error)

	// Position extracts the index position of a row
	Position func(T) Position

	// Keep is the residual filter. Nil keeps every row.
	Keep func(T) bool
}

type cursorPayload struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"i"`
	Filter    string `json:"f"`
}

// Paginate returns the page selected by req
func Paginate[T any](ctx context.Context, scan Scan[T], req Request) (*Page[T], error) {
	limit := NormalizeLimit(req.Limit)

	after, err := DecodeCursor(scan.Key, req.Cursor)
	if err != nil {
		return nil, err
	}

	batch := limit + 1
	if scan.Keep != nil && batch < filteredBatch {
		batch = filteredBatch
	}

	matched := make([]T, 0, limit+1)
outer:
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := scan.Fetch(ctx, after, batch)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			pos := scan.Position(row)
			after = &pos
			if scan.Keep != nil && !scan.Keep(row) {
				continue
			}
			matched = append(matched, row)
			if len(matched) == limit+1 {
				break outer
			}
		}

		if len(rows) < batch {
			break
		}
	}

	page := &Page[T]{Items: matched}
	if len(matched) > limit {
		page.Items = matched[:limit]
		page.HasMore = true
		page.NextCursor = EncodeCursor(scan.Key, scan.Position(matched[limit-1]))
	}
	return page, nil
}

// NormalizeLimit applies the default and the upper bound
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor serializes pos as an opaque token bound to key
func EncodeCursor(key string, pos Position) string {
	raw, _ := json.Marshal(cursorPayload{
		CreatedAt: pos.CreatedAt,
		ID:        pos.ID,
		Filter:    fingerprint(key),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token issued by EncodeCursor for the same key.
// An empty cursor yields a nil position.
func DecodeCursor(key, cursor string) (*Position, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, domain.NewValidationError("Cursor inválido")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ID == "" {
		return nil, domain.NewValidationError("Cursor inválido")
	}
	if payload.Filter != fingerprint(key) {
		return nil, domain.NewValidationError("Cursor não pertence a esta consulta")
	}

	return &Position{CreatedAt: payload.CreatedAt, ID: payload.ID}, nil
}

func fingerprint(key string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%016x", h.Sum64())
}
