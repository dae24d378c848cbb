// Package conflict implements the Conflict Judge: a pure function choosing a
// winner between two colliding versions of the same record. Judges have no
// side effects and never mutate their inputs, so a Collection can apply one
// at sync time without holding any lock beyond its own cache guard.
package conflict

import "github.com/cuemby/acorndb/pkg/record"

// Judge picks a winner between local and incoming versions of the same id.
type Judge func(local, incoming *record.Record) *record.Record

// Timestamp is the default Judge: the later timestamp wins; an exact tie
// favors local.
func Timestamp(local, incoming *record.Record) *record.Record {
	if incoming.Timestamp.After(local.Timestamp) {
		return incoming
	}
	return local
}

// PreferLocal always keeps the local version regardless of timestamps.
func PreferLocal(local, _ *record.Record) *record.Record {
	return local
}

// PreferRemote always accepts the incoming version regardless of timestamps.
func PreferRemote(_, incoming *record.Record) *record.Record {
	return incoming
}
