package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a single worker's websocket with a bounded outbound
// queue. Per spec.md §5 ("backpressure must never grow memory
// unbounded"), a slow worker that cannot drain its queue is disconnected
// rather than buffered indefinitely.
type Connection struct {
	ID       string
	Kind     WorkerKind
	Hostname string

	conn    *websocket.Conn
	send    chan Frame
	closeCh chan struct{}
	once    sync.Once
}

const sendQueueDepth = 256

func newConnection(id string, kind WorkerKind, hostname string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:       id,
		Kind:     kind,
		Hostname: hostname,
		conn:     conn,
		send:     make(chan Frame, sendQueueDepth),
		closeCh:  make(chan struct{}),
	}
}

// Enqueue attempts a non-blocking send; if the queue is full the
// connection is torn down rather than applying backpressure to the
// caller (the caller is usually the engine, inside or just after a DB
// transaction, and must not block on a stalled worker).
func (c *Connection) Enqueue(f Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		c.Close()
		return false
	}
}

func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.closeCh)
		_ = c.conn.Close()
	})
}

// Registry tracks live connections by id and kind, plus the last-known
// status record per indexer connection (spec.md §4.3), which is never
// persisted to Postgres — only kept in memory for the lifetime of the
// process, backed by an embedded buntdb instance so status reads compose
// with a TTL-style staleness check for free.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Connection
	byKind map[WorkerKind][]*Connection

	status *statusCache
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Connection),
		byKind: make(map[WorkerKind][]*Connection),
		status: newStatusCache(),
	}
}

func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	r.byKind[c.Kind] = append(r.byKind[c.Kind], c)
}

func (r *Registry) Remove(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, c.ID)
	peers := r.byKind[c.Kind]
	for i, p := range peers {
		if p == c {
			r.byKind[c.Kind] = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	_ = r.status.markDisconnected(c.ID)
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) ByKind(kind WorkerKind) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, len(r.byKind[kind]))
	copy(out, r.byKind[kind])
	return out
}

func (r *Registry) RecordStatus(id string, s StatusRecord) error {
	s.UpdatedAt = nowUTC()
	return r.status.put(id, s)
}

func (r *Registry) Status(id string) (StatusRecord, bool) {
	return r.status.get(id)
}

func (r *Registry) AllStatuses() map[string]StatusRecord {
	return r.status.all()
}

// nowUTC stamps status records in UTC, matching the
// normalize-at-the-boundary convention used in internal/cmn/time.go.
func nowUTC() time.Time { return time.Now().UTC() }
