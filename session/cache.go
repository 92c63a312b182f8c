package session

import (
	"context"
	"sync"

	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/transcription"
)

// Session is a loaded in-process model bound to one device.
type Session interface {
	Model() transcription.ModelID
	Device() transcription.Device
	Close() error
}

// Loader loads a model onto a device.
type Loader interface {
	Load(ctx context.Context, model transcription.ModelID, device transcription.Device) (Session, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, model transcription.ModelID, device transcription.Device) (Session, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, model transcription.ModelID, device transcription.Device) (Session, error) {
	return f(ctx, model, device)
}

// Stats counts cache activity.
type Stats struct {
	Hits      int
	Loads     int
	Evictions int
}

type entry struct {
	sess      Session
	model     transcription.ModelID
	device    transcription.Device
	leases    int
	drained   chan struct{}
	discarded bool
}

// Cache holds at most one resident session. A session is reused only for
// an exact (model, device) match; any other request evicts it once every
// lease on it is released.
type Cache struct {
	loader Loader
	log    *logger.Logger

	mu      sync.Mutex
	current *entry
	stats   Stats
}

// NewCache creates a cache backed by loader.
func NewCache(loader Loader, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.WithComponent("session")
	}
	return &Cache{loader: loader, log: log}
}

// Acquire returns a lease on a session for (model, device), loading it if
// needed. The caller must Release the lease.
func (c *Cache) Acquire(ctx context.Context, model transcription.ModelID, device transcription.Device) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for c.current != nil {
		cur := c.current
		if cur.model == model && cur.device == device && !cur.discarded {
			c.stats.Hits++
			lease := c.lease(cur)
			c.mu.Unlock()
			return lease, nil
		}
		if cur.leases > 0 {
			cur.discarded = true
			drained := cur.drained
			c.mu.Unlock()
			select {
			case <-drained:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.mu.Lock()
			continue
		}
		c.evictLocked(cur)
	}
	defer c.mu.Unlock()

	sess, err := c.loader.Load(ctx, model, device)
	if err != nil {
		return nil, err
	}
	c.stats.Loads++
	e := &entry{sess: sess, model: model, device: device}
	c.current = e
	c.log.Debug("session loaded", logger.Fields(logger.FieldModel, model, logger.FieldDevice, device))
	return c.lease(e), nil
}

// lease requires c.mu.
func (c *Cache) lease(e *entry) *Lease {
	if e.leases == 0 {
		e.drained = make(chan struct{})
	}
	e.leases++
	return &Lease{cache: c, entry: e}
}

// evictLocked closes e and clears it if resident. Requires c.mu.
func (c *Cache) evictLocked(e *entry) {
	if c.current == e {
		c.current = nil
	}
	c.stats.Evictions++
	if err := e.sess.Close(); err != nil {
		c.log.Warn("session close failed", logger.Fields(logger.FieldModel, e.model, logger.FieldError, err.Error()))
	}
	c.log.Debug("session evicted", logger.Fields(logger.FieldModel, e.model, logger.FieldDevice, e.device))
}

func (c *Cache) release(e *entry, discard bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if discard {
		e.discarded = true
	}
	e.leases--
	if e.leases > 0 {
		return
	}
	close(e.drained)
	if e.discarded && c.current == e {
		c.evictLocked(e)
	}
}

// Resident reports the currently loaded model and device.
func (c *Cache) Resident() (transcription.ModelID, transcription.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", "", false
	}
	return c.current.model, c.current.device, true
}

// Stats returns a copy of the activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close evicts the resident session. A session still leased is closed
// when its last lease is released.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	if c.current.leases > 0 {
		c.current.discarded = true
		return nil
	}
	c.evictLocked(c.current)
	return nil
}

// Lease is a claim on a resident session.
type Lease struct {
	cache *Cache
	entry *entry
	once  sync.Once
}

// Session returns the leased session.
func (l *Lease) Session() Session { return l.entry.sess }

// Release returns the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() { l.cache.release(l.entry, false) })
}

// Discard returns the lease and evicts the session once it is idle. Used
// after the session failed or its attempt was cancelled.
func (l *Lease) Discard() {
	l.once.Do(func() { l.cache.release(l.entry, true) })
}
