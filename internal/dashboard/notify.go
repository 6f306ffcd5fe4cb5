package dashboard

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Variant is the visual weight of a notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing message about the outcome of a dashboard action.
type Notification struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"description"`
	Variant Variant   `json:"variant"`
	At      time.Time `json:"at"`
}

// Notifier presents notifications. The controller never assumes how.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Notifiers fans a notification out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, x := range ns {
		x.Notify(n)
	}
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	level := "INFO"
	if n.Variant == VariantDestructive {
		level = "ERROR"
	}
	log.Printf("%s: notification %q: %s", level, n.Title, n.Message)
}

// Feed keeps the most recent notifications in memory, newest last.
type Feed struct {
	mu    sync.RWMutex
	max   int
	items []Notification
}

// NewFeed creates a Feed retaining at most max notifications (0 = unlimited).
func NewFeed(max int) *Feed {
	return &Feed{max: max}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, n)
	if f.max > 0 && len(f.items) > f.max {
		over := len(f.items) - f.max
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Recent returns up to limit of the newest notifications, oldest first.
// A limit <= 0 returns everything retained.
func (f *Feed) Recent(limit int) []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	items := f.items
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]Notification, len(items))
	copy(out, items)
	return out
}

func newNotification(title, message string, variant Variant) Notification {
	return Notification{
		ID:      uuid.New(),
		Title:   title,
		Message: message,
		Variant: variant,
		At:      time.Now().UTC(),
	}
}
