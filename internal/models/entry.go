package models

import (
	"encoding/json"
	"time"
)

// Entry is the minimal slice of a credential entry that sync and merge
// operate on: a stable id, a modification timestamp, and opaque data owned
// by the presentation layer.
type Entry struct {
	ID         string          `json:"id"`
	ModifiedAt time.Time       `json:"modified_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// EntryPayload is the plaintext form of a vault payload: a flat list of
// entries. It is the only payload shape that supports entry-level merge.
type EntryPayload struct {
	Entries []Entry `json:"entries"`
}

// ParseEntryPayload decodes a plaintext payload. A payload that does not
// decode to the entry list shape is not mergeable.
func ParseEntryPayload(data []byte) (*EntryPayload, error) {
	var p EntryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Entries == nil {
		return nil, ErrNotMergeable
	}
	return &p, nil
}

// Encode serializes the payload back to plaintext bytes.
func (p *EntryPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
