// Package memstore is the in-memory docstore.Store used by tests and local
// development. Documents carry a version counter; transactions record the
// versions they read and commit only if none changed, which gives the same
// optimistic read-then-write contract as the production backend.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"honbap/backend/internal/docstore"
)

const txMaxAttempts = 5

type document struct {
	data    []byte
	version int64
}

type watcher struct {
	path   string
	docID  string // empty for query watchers
	query  docstore.Query
	notify chan struct{}
}

// Store implements docstore.Store in memory.
type Store struct {
	mu       sync.RWMutex
	cols     map[string]map[string]*document
	watchers map[int]*watcher
	nextW    int
}

func New() *Store {
	return &Store{
		cols:     make(map[string]map[string]*document),
		watchers: make(map[int]*watcher),
	}
}

func (s *Store) Collection(path ...string) docstore.Collection {
	return &collection{store: s, path: strings.Join(path, "/")}
}

func (s *Store) docs(path string) map[string]*document {
	m, ok := s.cols[path]
	if !ok {
		m = make(map[string]*document)
		s.cols[path] = m
	}
	return m
}

// notifyLocked pokes every watcher of the given collection. Callers hold mu.
// The notify channel has capacity one and drops when a poke is already
// pending; watchers re-read full state on wake, so coalescing is safe.
func (s *Store) notifyLocked(path string) {
	for _, w := range s.watchers {
		if w.path != path {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

type collection struct {
	store *Store
	path  string
}

func (c *collection) Path() string { return c.path }

func (c *collection) Get(_ context.Context, id string) (docstore.Snapshot, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.snapshotLocked(id), nil
}

func (c *collection) snapshotLocked(id string) docstore.Snapshot {
	d, ok := c.store.cols[c.path][id]
	if !ok {
		return docstore.Snapshot{ID: id}
	}
	return docstore.Snapshot{ID: id, Data: append([]byte(nil), d.data...), Version: d.version}
}

func (c *collection) Set(_ context.Context, id string, doc any) error {
	data, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.setLocked(id, data)
	c.store.notifyLocked(c.path)
	return nil
}

func (c *collection) setLocked(id string, data []byte) {
	docs := c.store.docs(c.path)
	d, ok := docs[id]
	if !ok {
		d = &document{}
		docs[id] = d
	}
	d.data = data
	d.version++
}

func (c *collection) Update(_ context.Context, id string, fields map[string]any) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	d, ok := c.store.cols[c.path][id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := docstore.MergeFields(d.data, fields)
	if err != nil {
		return err
	}
	d.data = merged
	d.version++
	c.store.notifyLocked(c.path)
	return nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.cols[c.path], id)
	c.store.notifyLocked(c.path)
	return nil
}

func (c *collection) Add(ctx context.Context, doc any) (string, error) {
	id := uuid.NewString()
	return id, c.Set(ctx, id, doc)
}

func (c *collection) Query(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	c.store.mu.RLock()
	snaps := c.allLocked()
	c.store.mu.RUnlock()
	return docstore.Apply(snaps, q), nil
}

func (c *collection) allLocked() []docstore.Snapshot {
	docs := c.store.cols[c.path]
	snaps := make([]docstore.Snapshot, 0, len(docs))
	for id := range docs {
		snaps = append(snaps, c.snapshotLocked(id))
	}
	return snaps
}

func (c *collection) WatchDoc(ctx context.Context, id string) (<-chan docstore.Snapshot, func()) {
	out := make(chan docstore.Snapshot, 1)
	notify, stop := c.store.addWatcher(&watcher{path: c.path, docID: id})
	go func() {
		defer close(out)
		for {
			snap, _ := c.Get(ctx, id)
			sendLatest(out, snap)
			select {
			case _, ok := <-notify:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stop
}

func (c *collection) WatchQuery(ctx context.Context, q docstore.Query) (<-chan []docstore.Snapshot, func()) {
	out := make(chan []docstore.Snapshot, 1)
	notify, stop := c.store.addWatcher(&watcher{path: c.path, query: q})
	go func() {
		defer close(out)
		for {
			snaps, _ := c.Query(ctx, q)
			sendLatest(out, snaps)
			select {
			case _, ok := <-notify:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stop
}

// sendLatest delivers v without blocking: a slow consumer sees the newest
// snapshot, not a backlog, matching the replace-wholesale subscription model.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (s *Store) addWatcher(w *watcher) (<-chan struct{}, func()) {
	w.notify = make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = w
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(w.notify)
		})
	}
	return w.notify, stop
}

// --- transactions ---

type writeOp struct {
	path   string
	id     string
	data   []byte         // nil means delete unless fields != nil
	fields map[string]any // non-nil means merge update
	del    bool
}

type memTx struct {
	store *Store
	reads map[string]int64 // "path\x00id" -> version read
	ops   []writeOp
}

func key(path, id string) string { return path + "\x00" + id }

func (t *memTx) Get(c docstore.Collection, id string) (docstore.Snapshot, error) {
	col := c.(*collection)
	t.store.mu.RLock()
	snap := col.snapshotLocked(id)
	t.store.mu.RUnlock()
	t.reads[key(col.path, id)] = snap.Version
	return snap, nil
}

func (t *memTx) Set(c docstore.Collection, id string, doc any) error {
	data, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, writeOp{path: c.Path(), id: id, data: data})
	return nil
}

func (t *memTx) Update(c docstore.Collection, id string, fields map[string]any) error {
	t.ops = append(t.ops, writeOp{path: c.Path(), id: id, fields: fields})
	return nil
}

func (t *memTx) Delete(c docstore.Collection, id string) error {
	t.ops = append(t.ops, writeOp{path: c.Path(), id: id, del: true})
	return nil
}

func (s *Store) RunTx(ctx context.Context, fn func(tx docstore.Tx) error) error {
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: s, reads: make(map[string]int64)}
		if err := fn(tx); err != nil {
			return err
		}
		if s.commit(tx) {
			return nil
		}
	}
	return docstore.ErrConflict
}

func (s *Store) commit(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, readV := range tx.reads {
		path, id, _ := strings.Cut(k, "\x00")
		var cur int64
		if d, ok := s.cols[path][id]; ok {
			cur = d.version
		}
		if cur != readV {
			return false
		}
	}

	touched := make(map[string]bool)
	for _, op := range tx.ops {
		col := &collection{store: s, path: op.path}
		switch {
		case op.del:
			delete(s.cols[op.path], op.id)
		case op.fields != nil:
			if d, ok := s.cols[op.path][op.id]; ok {
				if merged, err := docstore.MergeFields(d.data, op.fields); err == nil {
					d.data = merged
					d.version++
				}
			}
		default:
			col.setLocked(op.id, op.data)
		}
		touched[op.path] = true
	}
	for path := range touched {
		s.notifyLocked(path)
	}
	return true
}
