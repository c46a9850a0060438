package domain

import "fmt"

// Kind enumerates the remote inserts the site owner is alerted about.
type Kind int

const (
	KindNewContact Kind = iota + 1
	KindHireMeClick
)

// Collection names in the remote store.
const (
	CollectionContactSubmissions = "contact_submissions"
	CollectionHireMeClicks       = "hire_me_clicks"
	CollectionAnalytics          = "analytics"
	CollectionResumeDownloads    = "resume_downloads"
)

// Kinds lists every Kind, in declaration order.
var Kinds = []Kind{KindNewContact, KindHireMeClick}

func (k Kind) String() string {
	switch k {
	case KindNewContact:
		return "new_contact"
	case KindHireMeClick:
		return "hire_me_click"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Collection returns the collection whose inserts produce this kind.
func (k Kind) Collection() string {
	switch k {
	case KindNewContact:
		return CollectionContactSubmissions
	case KindHireMeClick:
		return CollectionHireMeClicks
	}
	panic(fmt.Sprintf("domain: unknown kind %d", int(k)))
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindNewContact, KindHireMeClick:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown kind %d: %w", int(k), ErrBadRequest)
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown kind %q: %w", string(b), ErrBadRequest)
	}
	*k = parsed
	return nil
}

// ParseKind maps the wire name of a kind back to its value.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// KindForCollection maps a change-feed collection to the kind it produces.
func KindForCollection(collection string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Collection() == collection {
			return k, true
		}
	}
	return 0, false
}

// Payload is the closed set of records that can be announced to the owner.
// Only *ContactSubmission and *InterestClickEvent implement it.
type Payload interface {
	Kind() Kind
	RecordID() string
	sealed()
}
