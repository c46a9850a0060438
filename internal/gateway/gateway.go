// Package gateway defines the contract of the remote data store: inserts into
// named collections and a change-feed of inserted rows. Implementations live
// in the memory, dynamo and postgres packages.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCollectionNotFound is returned when the target collection does not
// exist. Best-effort writers treat it as expected.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrClosed is returned by operations on a closed gateway or subscription.
var ErrClosed = errors.New("gateway closed")

// EventInsert is the only change-feed event type the application consumes.
const EventInsert = "INSERT"

// Record is one row as seen by the gateway, keyed by column name.
type Record map[string]any

// ID returns the row identifier, or "" when the row has none.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Decode copies the record into v using the json field names of v.
func (r Record) Decode(v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// ToRecord flattens a row struct (or map) into a Record using its json tags.
func ToRecord(row any) (Record, error) {
	if r, ok := row.(Record); ok {
		out := make(Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out, nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return out, nil
}

// ChangeFilter selects change-feed events by collection and event type.
type ChangeFilter struct {
	Collection string
	Event      string
}

// ChangeEvent is one observed change.
type ChangeEvent struct {
	Collection string
	Event      string
	New        Record
}

// Matches reports whether e passes at least one filter.
func (e ChangeEvent) Matches(filters []ChangeFilter) bool {
	for _, f := range filters {
		if f.Collection == e.Collection && f.Event == e.Event {
			return true
		}
	}
	return false
}

// Subscription is a live change-feed. Done is closed when the feed stops,
// either through Unsubscribe or because the connection dropped; Err then
// reports why (nil after Unsubscribe).
type Subscription interface {
	Unsubscribe()
	Done() <-chan struct{}
	Err() error
}

// Gateway is the remote store.
type Gateway interface {
	// Insert writes row to collection and returns the stored row including its id.
	Insert(ctx context.Context, collection string, row any) (Record, error)
	// Subscribe delivers every insert matching filters to handler until the
	// subscription is torn down. Handler calls are serialised.
	Subscribe(ctx context.Context, filters []ChangeFilter, handler func(ChangeEvent)) (Subscription, error)
}

// IsCollectionNotFound reports whether err is, or wraps, ErrCollectionNotFound.
func IsCollectionNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}
