// Package realtime delivers row-change notifications and keeps client-facing
// aggregates fresh by refetching them whole whenever a watched table changes.
package realtime

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dateloop/backend/internal/logging"
)

// Op names the kind of row mutation carried by a Change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Tables that emit change notifications.
const (
	TableProfiles    = "profiles"
	TableFriends     = "friends"
	TablePosts       = "posts"
	TableDates       = "dates"
	TableLikes       = "likes"
	TableComments    = "comments"
	TableInvitations = "date_invitations"
	TableChallenges  = "challenges"
	TableMessages    = "messages"
)

// Change describes a committed mutation of one row.
type Change struct {
	Table   string    `json:"table"`
	Op      Op        `json:"op"`
	RowID   string    `json:"rowId"`
	UserIDs []string  `json:"userIds,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher broadcasts committed changes to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Subscriber registers callbacks for changes matching a filter.
type Subscriber interface {
	Subscribe(filter Filter, fn func(Change)) (unsubscribe func())
}

// Filter selects changes by table and, optionally, by the users they involve.
// A change matches when its table is listed and every participant appears in
// the change's UserIDs.
type Filter struct {
	Tables       []string
	Participants []string
}

// Matches reports whether the change passes the filter.
func (f Filter) Matches(change Change) bool {
	if !slices.Contains(f.Tables, change.Table) {
		return false
	}
	for _, participant := range f.Participants {
		if !slices.Contains(change.UserIDs, participant) {
			return false
		}
	}
	return true
}

type subscription struct {
	filter Filter
	fn     func(Change)
}

// Bus is an in-process Publisher and Subscriber. Callbacks run synchronously on
// the publishing goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	next   uint64
	logger *slog.Logger
}

// NewBus constructs an empty change bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[uint64]subscription), logger: logger}
}

// Publish delivers the change to every matching subscriber.
func (b *Bus) Publish(_ context.Context, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	b.mu.RLock()
	matched := make([]func(Change), 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.Matches(change) {
			matched = append(matched, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range matched {
		fn(change)
	}

	b.logger.Debug("change published", "table", change.Table, "op", string(change.Op), "rowId", change.RowID, "subscribers", len(matched))
	return nil
}

// Subscribe registers fn for changes matching filter and returns a function that removes it.
func (b *Bus) Subscribe(filter Filter, fn func(Change)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = subscription{filter: filter, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Notify publishes a change on behalf of a write that has already committed.
// Delivery failures are logged rather than returned so they never fail the write.
func Notify(ctx context.Context, pub Publisher, change Change) {
	if pub == nil {
		return
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	if err := pub.Publish(ctx, change); err != nil {
		logging.FromContext(ctx).Warn("publish change failed", "table", change.Table, "op", string(change.Op), "rowId", change.RowID, "error", err)
	}
}
