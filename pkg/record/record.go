// Package record defines Record, the unit AcornDB stores, caches, and
// replicates, along with its wire shape and the helpers peers and backends
// use to stamp a mutation with change-tracking metadata.
package record

import (
	"encoding/json"
	"time"
)

// Record is the unit of storage and replication. Payload is carried as raw
// JSON bytes at this layer so backends and the pipeline never need to know
// the element type; Collection[T] decodes/encodes at its boundary.
type Record struct {
	ID           string          `json:"id"`
	Payload      json.RawMessage `json:"payload"`
	Timestamp    time.Time       `json:"timestamp"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Version      int             `json:"version"`
	ChangeID     string          `json:"change_id"`
	OriginNodeID string          `json:"origin_node_id"`
	HopCount     int             `json:"hop_count"`

	// Extra preserves any additional wire fields encountered on read so that
	// unknown fields from a newer peer round-trip unchanged (§6: "additional
	// fields must be tolerated on read and preserved on write").
	Extra map[string]json.RawMessage `json:"-"`
}

// Expired reports whether the record is logically absent at instant now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Clone returns a deep-enough copy safe to mutate independently (the Payload
// slice is shared, as a Record's Payload is treated as immutable once
// assembled).
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// MarshalJSON implements the abstract wire shape from §6, folding Extra back
// into the top-level object.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	base, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the abstract wire shape from §6, stashing unknown
// fields into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Record(a)

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	known := map[string]bool{
		"id": true, "payload": true, "timestamp": true, "expires_at": true,
		"version": true, "change_id": true, "origin_node_id": true, "hop_count": true,
	}
	for k, v := range m {
		if !known[k] {
			if r.Extra == nil {
				r.Extra = map[string]json.RawMessage{}
			}
			r.Extra[k] = v
		}
	}
	return nil
}
