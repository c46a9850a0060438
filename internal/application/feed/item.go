package feed

import (
	"fmt"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
)

// Item is one alert shown to the owner. Items become read once their timer
// fires and leave the feed only through Dismiss or ClearAll.
type Item struct {
	ID         string         `json:"id"`
	Kind       domain.Kind    `json:"kind"`
	Payload    domain.Payload `json:"payload"`
	Record     gateway.Record `json:"record"`
	ReceivedAt time.Time      `json:"received_at"`
	Read       bool           `json:"read"`
}

// Snapshot is the owner-visible state of the feed, newest item first.
type Snapshot struct {
	Visible bool   `json:"visible"`
	Items   []Item `json:"items"`
}

// Timer is the part of *time.Timer the feed uses.
type Timer interface {
	Stop() bool
}

// entry owns an item's read timer. token tells a fired timer whether the
// entry it was scheduled for is still the one in the list.
type entry struct {
	item  Item
	token uint64
	timer Timer
}

func decodePayload(kind domain.Kind, rec gateway.Record) (domain.Payload, error) {
	switch kind {
	case domain.KindNewContact:
		var c domain.ContactSubmission
		if err := rec.Decode(&c); err != nil {
			return nil, err
		}
		return &c, nil
	case domain.KindHireMeClick:
		var e domain.InterestClickEvent
		if err := rec.Decode(&e); err != nil {
			return nil, err
		}
		return &e, nil
	}
	return nil, fmt.Errorf("feed: unknown kind %d: %w", int(kind), domain.ErrBadRequest)
}
