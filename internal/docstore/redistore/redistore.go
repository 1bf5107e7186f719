// Package redistore is the Redis-backed docstore.Store. Documents live as
// JSON envelopes under doc:<path>:<id> with a per-collection id index set;
// optimistic transactions ride on Redis WATCH/MULTI/EXEC, and change
// notifications fan out over pub/sub one channel per collection.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"honbap/backend/internal/docstore"
)

const txMaxAttempts = 5

type envelope struct {
	V int64           `json:"v"`
	D json.RawMessage `json:"d"`
}

// Store implements docstore.Store on a Redis client.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func docKey(path, id string) string { return "doc:" + path + ":" + id }
func idxKey(path string) string     { return "idx:" + path }
func chKey(path string) string      { return "ch:" + path }

// mapErr translates backend resource failures into the boundary's quota
// error so callers can surface an actionable message.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "OOM") || strings.Contains(err.Error(), "maxmemory") {
		return fmt.Errorf("%w: %v", docstore.ErrQuota, err)
	}
	return err
}

func (s *Store) Collection(path ...string) docstore.Collection {
	return &collection{store: s, path: strings.Join(path, "/")}
}

type collection struct {
	store *Store
	path  string
}

func (c *collection) Path() string { return c.path }

func decodeSnapshot(id string, raw string) docstore.Snapshot {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return docstore.Snapshot{ID: id}
	}
	return docstore.Snapshot{ID: id, Data: env.D, Version: env.V}
}

func (c *collection) Get(ctx context.Context, id string) (docstore.Snapshot, error) {
	raw, err := c.store.rdb.Get(ctx, docKey(c.path, id)).Result()
	if errors.Is(err, redis.Nil) {
		return docstore.Snapshot{ID: id}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, mapErr(err)
	}
	return decodeSnapshot(id, raw), nil
}

// writeDoc replaces the document under WATCH so the version counter never
// regresses under concurrent writers.
func (c *collection) writeDoc(ctx context.Context, id string, mutate func(old docstore.Snapshot) (json.RawMessage, error)) error {
	key := docKey(c.path, id)
	fn := func(rtx *redis.Tx) error {
		old := docstore.Snapshot{ID: id}
		raw, err := rtx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			old = decodeSnapshot(id, raw)
		}
		data, err := mutate(old)
		if err != nil {
			return err
		}
		env, err := json.Marshal(envelope{V: old.Version + 1, D: data})
		if err != nil {
			return err
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, env, 0)
			pipe.SAdd(ctx, idxKey(c.path), id)
			pipe.Publish(ctx, chKey(c.path), id)
			return nil
		})
		return err
	}
	var err error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		err = c.store.rdb.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return mapErr(err)
}

func (c *collection) Set(ctx context.Context, id string, doc any) error {
	data, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	return c.writeDoc(ctx, id, func(docstore.Snapshot) (json.RawMessage, error) {
		return data, nil
	})
}

func (c *collection) Update(ctx context.Context, id string, fields map[string]any) error {
	return c.writeDoc(ctx, id, func(old docstore.Snapshot) (json.RawMessage, error) {
		if !old.Exists() {
			return nil, docstore.ErrNotFound
		}
		return docstore.MergeFields(old.Data, fields)
	})
}

func (c *collection) Delete(ctx context.Context, id string) error {
	_, err := c.store.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(c.path, id))
		pipe.SRem(ctx, idxKey(c.path), id)
		pipe.Publish(ctx, chKey(c.path), id)
		return nil
	})
	return mapErr(err)
}

func (c *collection) Add(ctx context.Context, doc any) (string, error) {
	id := uuid.NewString()
	return id, c.Set(ctx, id, doc)
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	ids, err := c.store.rdb.SMembers(ctx, idxKey(c.path)).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(c.path, id)
	}
	raws, err := c.store.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	snaps := make([]docstore.Snapshot, 0, len(ids))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue // index member with no doc, e.g. deleted mid-read
		}
		snaps = append(snaps, decodeSnapshot(ids[i], str))
	}
	return docstore.Apply(snaps, q), nil
}

func (c *collection) WatchDoc(ctx context.Context, id string) (<-chan docstore.Snapshot, func()) {
	out := make(chan docstore.Snapshot, 1)
	sub := c.store.rdb.Subscribe(ctx, chKey(c.path))
	go func() {
		defer close(out)
		snap, err := c.Get(ctx, id)
		if err == nil {
			sendLatest(out, snap)
		}
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				if msg.Payload != id {
					continue
				}
				if snap, err := c.Get(ctx, id); err == nil {
					sendLatest(out, snap)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stopFunc(sub)
}

func (c *collection) WatchQuery(ctx context.Context, q docstore.Query) (<-chan []docstore.Snapshot, func()) {
	out := make(chan []docstore.Snapshot, 1)
	sub := c.store.rdb.Subscribe(ctx, chKey(c.path))
	go func() {
		defer close(out)
		if snaps, err := c.Query(ctx, q); err == nil {
			sendLatest(out, snaps)
		}
		for {
			select {
			case _, ok := <-sub.Channel():
				if !ok {
					return
				}
				if snaps, err := c.Query(ctx, q); err == nil {
					sendLatest(out, snaps)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stopFunc(sub)
}

func stopFunc(sub *redis.PubSub) func() {
	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Close() })
	}
}

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

// --- transactions ---

type redisTx struct {
	ctx   context.Context
	rtx   *redis.Tx
	reads map[string]docstore.Snapshot
	ops   []txOp
}

type txOp struct {
	path   string
	id     string
	data   json.RawMessage
	fields map[string]any
	del    bool
}

// read fetches under WATCH, caching so the transaction sees its own
// consistent view and the commit can derive write versions.
func (t *redisTx) read(path, id string) (docstore.Snapshot, error) {
	key := docKey(path, id)
	if snap, ok := t.reads[key]; ok {
		return snap, nil
	}
	if err := t.rtx.Watch(t.ctx, key).Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	snap := docstore.Snapshot{ID: id}
	raw, err := t.rtx.Get(t.ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return docstore.Snapshot{}, err
	}
	if err == nil {
		snap = decodeSnapshot(id, raw)
	}
	t.reads[key] = snap
	return snap, nil
}

func (t *redisTx) Get(c docstore.Collection, id string) (docstore.Snapshot, error) {
	return t.read(c.Path(), id)
}

func (t *redisTx) Set(c docstore.Collection, id string, doc any) error {
	data, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	if _, err := t.read(c.Path(), id); err != nil {
		return err
	}
	t.ops = append(t.ops, txOp{path: c.Path(), id: id, data: data})
	return nil
}

func (t *redisTx) Update(c docstore.Collection, id string, fields map[string]any) error {
	if _, err := t.read(c.Path(), id); err != nil {
		return err
	}
	t.ops = append(t.ops, txOp{path: c.Path(), id: id, fields: fields})
	return nil
}

func (t *redisTx) Delete(c docstore.Collection, id string) error {
	if _, err := t.read(c.Path(), id); err != nil {
		return err
	}
	t.ops = append(t.ops, txOp{path: c.Path(), id: id, del: true})
	return nil
}

func (s *Store) RunTx(ctx context.Context, fn func(tx docstore.Tx) error) error {
	run := func(rtx *redis.Tx) error {
		t := &redisTx{ctx: ctx, rtx: rtx, reads: make(map[string]docstore.Snapshot)}
		if err := fn(t); err != nil {
			return err
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range t.ops {
				key := docKey(op.path, op.id)
				if op.del {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, idxKey(op.path), op.id)
					pipe.Publish(ctx, chKey(op.path), op.id)
					continue
				}
				cur := t.reads[key]
				data := op.data
				if op.fields != nil {
					if !cur.Exists() {
						continue // merge onto a missing doc is a no-op
					}
					merged, err := docstore.MergeFields(cur.Data, op.fields)
					if err != nil {
						return err
					}
					data = merged
				}
				env, err := json.Marshal(envelope{V: cur.Version + 1, D: data})
				if err != nil {
					return err
				}
				// Keep the cached view current for chained ops on one doc.
				t.reads[key] = docstore.Snapshot{ID: op.id, Data: data, Version: cur.Version + 1}
				pipe.Set(ctx, key, env, 0)
				pipe.SAdd(ctx, idxKey(op.path), op.id)
				pipe.Publish(ctx, chKey(op.path), op.id)
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.rdb.Watch(ctx, run)
		if !errors.Is(err, redis.TxFailedErr) {
			return mapErr(err)
		}
	}
	return docstore.ErrConflict
}
