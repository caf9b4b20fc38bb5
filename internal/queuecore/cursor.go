package queuecore

import (
	"encoding/base64"
	"encoding/json"
)

// cursor is the decoded form of the opaque pagination token List hands out.
// Rows are ordered (sortAt DESC, id DESC); a cursor pins the position just
// after the last row of the previous page.
type cursor struct {
	SortAt int64  `json:"sortAt"`
	ID     string `json:"id"`
}

func encodeCursor(c cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// decodeCursor returns (cursor, true) on success. An invalid or malformed
// token is treated as no cursor at all, per spec.md §4.3: callers should
// fall back to listing from the start rather than erroring.
func decodeCursor(token string) (cursor, bool) {
	if token == "" {
		return cursor{}, false
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, false
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, false
	}
	if c.ID == "" {
		return cursor{}, false
	}
	return c, true
}
