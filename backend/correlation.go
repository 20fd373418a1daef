package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/viant/mcp-bridge/internal/collection"
)

// pending is the single assignment result slot of one outstanding request.
type pending struct {
	key    string
	done   chan struct{}
	once   sync.Once
	result json.RawMessage
	err    error
}

// fulfill resolves the slot exactly once; later calls are no-ops.
func (p *pending) fulfill(result json.RawMessage, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// correlation maps in-flight request ids to their result slots.
type correlation struct {
	entries *collection.SyncMap[string, *pending]
}

func newCorrelation() *correlation {
	return &correlation{entries: collection.NewSyncMap[string, *pending]()}
}

// register atomically inserts a new slot for key, rejecting a key that is
// already outstanding.
func (c *correlation) register(key string) (*pending, error) {
	p := &pending{key: key, done: make(chan struct{})}
	if !c.entries.PutIfAbsent(key, p) {
		return nil, ErrDuplicateID
	}
	return p, nil
}

// fulfill resolves and removes the slot registered under key, reporting
// whether a waiter was present.
func (c *correlation) fulfill(key string, line json.RawMessage) bool {
	p, ok := c.entries.Remove(key)
	if !ok {
		return false
	}
	p.fulfill(line, nil)
	return true
}

// remove discards the slot for key without resolving it, used when the
// write that followed registration failed.
func (c *correlation) remove(key string) {
	c.entries.Remove(key)
}

// await suspends until the dispatcher resolves p, the timeout elapses or
// ctx is cancelled. On timeout or cancellation the entry is removed so it
// cannot be fulfilled late.
func (c *correlation) await(ctx context.Context, p *pending, timeout time.Duration) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.result, p.err
	case <-timer.C:
		c.entries.Remove(p.key)
		select {
		case <-p.done:
			return p.result, p.err
		default:
			return nil, ErrRequestTimeout
		}
	case <-ctx.Done():
		c.entries.Remove(p.key)
		select {
		case <-p.done:
			return p.result, p.err
		default:
			return nil, ctx.Err()
		}
	}
}

// cancelAll resolves every remaining slot with err and clears the table,
// used on backend termination so no waiter hangs forever.
func (c *correlation) cancelAll(err error) {
	c.entries.Range(func(key string, _ *pending) bool {
		if p, ok := c.entries.Remove(key); ok {
			p.fulfill(nil, err)
		}
		return true
	})
}

func (c *correlation) size() int {
	return c.entries.Size()
}

// idKey canonicalizes a raw JSON id value into an opaque equality key.
// Ids are never coerced across JSON types: 1 and "1" map to distinct keys.
func idKey(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}
