// Package docstore is the shared document-store boundary the whole engine
// coordinates through: durable key-addressed JSON documents grouped into
// named collections, point reads, single-equality-predicate queries with a
// result cap and optional single-field ordering, live snapshot subscriptions,
// and optimistic multi-document transactions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrConflict is returned by RunTx when a transaction could not commit
	// within the attempt budget because watched documents kept changing.
	ErrConflict = errors.New("docstore: transaction conflict")
	// ErrQuota marks quota/resource failures from the backing store. Callers
	// surface these with an actionable message and must not retry tightly.
	ErrQuota = errors.New("docstore: store quota exceeded")
	// ErrNotFound is returned by Update when the document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
)

// Snapshot is the state of one document at read time. Subscriptions deliver
// full snapshots on every change, never deltas.
type Snapshot struct {
	ID      string
	Data    json.RawMessage
	Version int64
}

// Exists reports whether the document was present when read.
func (s Snapshot) Exists() bool { return s.Version > 0 }

// Decode unmarshals the document into v. Decoding a missing document fails.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return errors.New("docstore: document does not exist")
	}
	return json.Unmarshal(s.Data, v)
}

// Query is a single-equality-predicate filter, the only server-side filtering
// the store offers without extra index provisioning. Zero-value Field means
// "all documents".
type Query struct {
	Field   string
	Equals  any
	Limit   int
	OrderBy string
	Desc    bool
}

// Collection is one named group of documents. Sub-collections are addressed
// through Store.Collection with a longer path.
type Collection interface {
	Path() string
	Get(ctx context.Context, id string) (Snapshot, error)
	// Set creates or fully replaces the document.
	Set(ctx context.Context, id string, doc any) error
	// Update merges the given top-level fields into the existing document.
	// Updating a missing document is an error.
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// Add stores doc under a freshly generated id and returns it.
	Add(ctx context.Context, doc any) (string, error)
	Query(ctx context.Context, q Query) ([]Snapshot, error)

	// WatchDoc delivers the current snapshot immediately and again after
	// every change. The returned stop func unsubscribes; it is idempotent.
	WatchDoc(ctx context.Context, id string) (<-chan Snapshot, func())
	// WatchQuery is WatchDoc over a query result set.
	WatchQuery(ctx context.Context, q Query) (<-chan []Snapshot, func())
}

// Tx is the read-then-write view inside an optimistic transaction. Every Get
// joins the read set; the commit aborts and retries if any read document
// changed since it was read.
type Tx interface {
	Get(c Collection, id string) (Snapshot, error)
	Set(c Collection, id string, doc any) error
	Update(c Collection, id string, fields map[string]any) error
	Delete(c Collection, id string) error
}

// Store is the full boundary. Implementations: memstore (in-memory, local
// development and tests) and redistore (Redis, production).
type Store interface {
	Collection(path ...string) Collection
	// RunTx runs fn against a consistent read view and commits its writes
	// atomically, retrying a bounded number of times on conflict. An error
	// from fn aborts without side effects and is returned as-is.
	RunTx(ctx context.Context, fn func(tx Tx) error) error
}
