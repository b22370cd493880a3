package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// PageInfo describes a cursor page in list responses.
type PageInfo struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// CourseCursor is the keyset position of the last course on a page. Listing
// orders by (created_at DESC, id DESC), so the pair is unique and stable.
type CourseCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c CourseCursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCourseCursor parses a token produced by Encode.
func DecodeCourseCursor(token string) (*CourseCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor CourseCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	if cursor.ID == "" || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("incomplete cursor")
	}
	return &cursor, nil
}
