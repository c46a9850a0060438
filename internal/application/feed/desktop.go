package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/portfolio-api/internal/domain"
)

// Permission mirrors the browser's desktop-notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission validates a permission coming from a client.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	}
	return "", fmt.Errorf("unknown permission %q: %w", s, domain.ErrBadRequest)
}

const desktopIcon = "/favicon.ico"

// Notification is a desktop notification.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Tag   string `json:"tag"`
}

// DesktopNotification renders the notification for an item.
func DesktopNotification(it Item) Notification {
	n := Notification{
		Icon: desktopIcon,
		Tag:  fmt.Sprintf("portfolio-%s-%s", it.Kind, it.Payload.RecordID()),
	}
	switch p := it.Payload.(type) {
	case *domain.ContactSubmission:
		n.Title = "New Contact: " + p.Name
		n.Body = p.Subject + " - " + p.Email
	case *domain.InterestClickEvent:
		n.Title = "Someone wants to hire you!"
		n.Body = `Someone clicked "Hire Me Now" on your portfolio!`
	default:
		panic(fmt.Sprintf("feed: unhandled payload %T", it.Payload))
	}
	return n
}

// Desktop is the owner's notification surface.
type Desktop interface {
	Permission() Permission
	RequestPermission(ctx context.Context)
	Show(n Notification)
}

// Sink delivers named events to connected admin clients. Publish must not block.
type Sink interface {
	Publish(event string, data any)
}

// Event names published to the Sink.
const (
	EventFeed       = "feed"
	EventDesktop    = "desktop"
	EventPermission = "permission"
)

// PermissionState is the payload of a permission event. Request asks the
// client to prompt the user.
type PermissionState struct {
	State   Permission `json:"state"`
	Request bool       `json:"request"`
}

// BrowserDesktop forwards notifications to the admin browser, which holds
// the real permission and reports it back through SetPermission.
type BrowserDesktop struct {
	sink Sink

	mu        sync.Mutex
	perm      Permission
	requested bool
}

var _ Desktop = (*BrowserDesktop)(nil)

func NewBrowserDesktop(sink Sink) *BrowserDesktop {
	return &BrowserDesktop{sink: sink, perm: PermissionDefault}
}

func (d *BrowserDesktop) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

// State is what a newly connected client needs to know.
func (d *BrowserDesktop) State() PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state()
}

func (d *BrowserDesktop) state() PermissionState {
	return PermissionState{State: d.perm, Request: d.requested && d.perm == PermissionDefault}
}

// RequestPermission asks connected clients to prompt for permission. The
// request stays pending for clients that connect later.
func (d *BrowserDesktop) RequestPermission(context.Context) {
	d.mu.Lock()
	if d.perm != PermissionDefault {
		d.mu.Unlock()
		return
	}
	d.requested = true
	st := d.state()
	d.mu.Unlock()
	d.sink.Publish(EventPermission, st)
}

// SetPermission records the answer reported by the browser.
func (d *BrowserDesktop) SetPermission(p Permission) {
	d.mu.Lock()
	d.perm = p
	if p != PermissionDefault {
		d.requested = false
	}
	st := d.state()
	d.mu.Unlock()
	d.sink.Publish(EventPermission, st)
}

func (d *BrowserDesktop) Show(n Notification) {
	d.sink.Publish(EventDesktop, n)
}
