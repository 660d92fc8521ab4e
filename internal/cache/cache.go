// Package cache defines the read-through cache that sits in front of the Record Store.
//
// Entries are keyed by query shape (by-id, by-user, page). Mutations call InvalidateAll.
// A reader takes a Ticket before it reads the store and may only populate the cache
// under that ticket. Store drops the write if an invalidation happened after the ticket
// was issued, so a result computed before a mutation can never be cached after it.
package cache

import (
	"context"
	"strconv"

	"github.com/tinoosan/txledger/internal/ledger"
)

// Key is an opaque cache key built from an operation and its parameters.
type Key string

// ByID keys a single-record lookup.
func ByID(id string) Key { return Key("by-id:" + id) }

// ByUser keys a per-user listing.
func ByUser(userID string) Key { return Key("by-user:" + userID) }

// Page keys one page of the global listing.
func Page(number, size int) Key {
	return Key("page:" + strconv.Itoa(number) + ":" + strconv.Itoa(size))
}

// Ticket is the invalidation generation observed by a reader.
type Ticket uint64

// Entry is a cached read result. Exactly one field is set, matching the key's shape.
type Entry struct {
	Record  *ledger.Projection  `json:"record,omitempty"`
	Records []ledger.Projection `json:"records,omitempty"`
	Page    *ledger.Page        `json:"page,omitempty"`
}

// Clone deep-copies e so cached state never aliases caller state.
func (e Entry) Clone() Entry {
	var out Entry
	if e.Record != nil {
		r := *e.Record
		out.Record = &r
	}
	if e.Records != nil {
		out.Records = append(make([]ledger.Projection, 0, len(e.Records)), e.Records...)
	}
	if e.Page != nil {
		p := *e.Page
		p.Content = append(make([]ledger.Projection, 0, len(e.Page.Content)), e.Page.Content...)
		out.Page = &p
	}
	return out
}

// Cache is implemented by every cache backend. All methods are safe for concurrent use.
type Cache interface {
	// Ticket returns the current invalidation generation.
	Ticket(ctx context.Context) (Ticket, error)
	// Lookup returns the entry for key in the current generation.
	Lookup(ctx context.Context, key Key) (Entry, bool, error)
	// Store records e under key unless the cache was invalidated after t was issued.
	Store(ctx context.Context, t Ticket, key Key, e Entry) error
	// InvalidateAll drops every entry and advances the generation.
	InvalidateAll(ctx context.Context) error
}

// Nop never stores anything. Used when caching is disabled.
type Nop struct{}

func (Nop) Ticket(context.Context) (Ticket, error) { return 0, nil }
func (Nop) Lookup(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }
func (Nop) Store(context.Context, Ticket, Key, Entry) error { return nil }
func (Nop) InvalidateAll(context.Context) error { return nil }
