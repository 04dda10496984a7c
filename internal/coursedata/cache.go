// Package coursedata holds a learner's course progress as a flat map of
// primitive values and persists it to the LMS suspend data, or to the local
// fallback store when no LMS is connected.
package coursedata

import (
	"context"
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-scorm/internal/debug"
	"github.com/p-n-ai/pai-scorm/internal/localstore"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

// DefaultDebounce is the delay between the last SetValue and its persist.
const DefaultDebounce = 500 * time.Millisecond

// Value is a course-data value: a string, number, bool or nil.
type Value = any

// Target is where a persist wrote to.
type Target string

const (
	TargetNone  Target = ""
	TargetSCORM Target = "scorm"
	TargetLocal Target = "local"
)

// Reason is why a persist ran.
type Reason string

const (
	ReasonDebounced Reason = "debounced"
	ReasonBatch     Reason = "batch"
	ReasonManual    Reason = "manual"
)

// Record describes the last persist.
type Record struct {
	Target   Target    `json:"target"`
	Reason   Reason    `json:"reason"`
	At       time.Time `json:"at"`
	Pending  bool      `json:"pending"`
	Length   int       `json:"length"`
	Checksum string    `json:"checksum"`
}

// ValidationError reports a value that is not a primitive.
type ValidationError struct {
	Key  string
	Kind string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("course data key %q: %s is not a primitive value", e.Key, e.Kind)
}

// Session is the part of scorm.Session the cache persists through.
type Session interface {
	Connected() bool
	Version() scorm.Version
	SetSuspendData(ctx context.Context, v any) error
	SuspendData() (string, bool, error)
}

// Config configures a Cache.
type Config struct {
	Session  Session
	Store    localstore.Store
	Keys     localstore.Keys
	Sink     *debug.Sink
	Debounce time.Duration
	Now      func() time.Time
}

// Cache is the in-memory course-data map with debounced persistence.
type Cache struct {
	session  Session
	store    localstore.Store
	keys     localstore.Keys
	sink     *debug.Sink
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	data    map[string]Value
	record  Record
	pending bool
	timer   *time.Timer
	gen     uint64

	persistMu sync.Mutex
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	store := cfg.Store
	if store == nil {
		store = localstore.NewMemoryStore()
	}
	keys := cfg.Keys
	if keys == (localstore.Keys{}) {
		keys = localstore.DefaultKeys()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		session:  cfg.Session,
		store:    store,
		keys:     keys,
		sink:     cfg.Sink,
		debounce: debounce,
		now:      now,
		data:     make(map[string]Value),
	}
}

// SetValue stores one value and schedules a debounced persist. A later
// SetValue inside the window replaces the pending persist.
func (c *Cache) SetValue(key string, v Value) error {
	if err := validate(key, v); err != nil {
		c.sink.Error(debug.SourceData, "Rejected course data value", map[string]any{"key": key})
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = v
	c.pending = true
	c.sink.Info(debug.SourceData, "Course data set", map[string]any{"key": key, "value": v})

	c.stopTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
	return nil
}

// SetMany stores all entries at once and persists immediately. Nothing is
// stored if any entry is invalid.
func (c *Cache) SetMany(ctx context.Context, entries map[string]Value) error {
	keys := sortedKeys(entries)
	for _, k := range keys {
		if err := validate(k, entries[k]); err != nil {
			c.sink.Error(debug.SourceData, "Rejected course data batch", map[string]any{"key": k})
			return err
		}
	}

	c.mu.Lock()
	maps.Copy(c.data, entries)
	c.stopTimerLocked()
	c.sink.Info(debug.SourceData, "Course data batch set", map[string]any{"keys": keys})
	c.mu.Unlock()

	return c.Persist(ctx, ReasonBatch)
}

// GetValue returns the value for key, or nil.
func (c *Cache) GetValue(key string) Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key]
}

// Data returns a copy of the map.
func (c *Cache) Data() map[string]Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.data)
}

// Record returns the last persist record.
func (c *Cache) Record() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.record
	r.Pending = c.pending
	return r
}

// Persist writes the whole map. When connected the encoded map goes to the
// LMS suspend data; under SCORM 1.2 an encoded map over the limit fails
// with *scorm.LimitExceededError and the record is left unchanged. When
// disconnected the plain JSON goes to the fallback store.
func (c *Cache) Persist(ctx context.Context, reason Reason) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.persistLocked(ctx, reason)
}

// persistLocked runs with persistMu held.
func (c *Cache) persistLocked(ctx context.Context, reason Reason) error {
	c.mu.Lock()
	data := maps.Clone(c.data)
	c.mu.Unlock()

	var (
		target  Target
		payload string
	)
	if c.session != nil && c.session.Connected() {
		encoded, err := scorm.Encode(data)
		if err != nil {
			return fmt.Errorf("encode course data: %w", err)
		}
		if err := scorm.CheckSuspendLimit(c.session.Version(), encoded); err != nil {
			c.sink.Error(debug.SourceData, "Suspend data exceeds SCORM 1.2 limit", map[string]any{
				"length": len([]rune(encoded)),
				"limit":  scorm.SuspendDataLimit12,
			})
			return err
		}
		if err := c.session.SetSuspendData(ctx, data); err != nil {
			c.sink.Error(debug.SourceData, "Failed to persist course data to SCORM", map[string]any{"error": err.Error()})
			return err
		}
		target, payload = TargetSCORM, encoded
		c.sink.Info(debug.SourceData, "Persisted course data to SCORM", map[string]any{
			"reason": string(reason),
			"length": len(encoded),
		})
	} else {
		plain, err := scorm.MarshalPlain(data)
		if err != nil {
			return fmt.Errorf("marshal course data: %w", err)
		}
		if err := c.store.Set(ctx, c.keys.CourseData, plain); err != nil {
			c.sink.Error(debug.SourceData, "Failed to persist course data locally", map[string]any{"error": err.Error()})
			return fmt.Errorf("write course data: %w", err)
		}
		target, payload = TargetLocal, plain
		c.sink.Warn(debug.SourceData, "Persisted course data to local fallback", map[string]any{
			"reason": string(reason),
			"length": len(plain),
		})
	}

	sum := blake2b.Sum256([]byte(payload))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = Record{
		Target:   target,
		Reason:   reason,
		At:       c.now(),
		Length:   len(payload),
		Checksum: hex.EncodeToString(sum[:]),
	}
	if c.timer == nil {
		c.pending = false
	}
	return nil
}

// Restore replaces the map with the LMS suspend data, or with the fallback
// store when disconnected or the LMS holds nothing. With both empty the map
// is left as is.
func (c *Cache) Restore(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	if c.session != nil && c.session.Connected() {
		raw, ok, err := c.session.SuspendData()
		if err != nil {
			return err
		}
		if ok && raw != "" {
			doc, err := scorm.Decode(raw)
			if err != nil {
				c.sink.Error(debug.SourceData, "Failed to decode SCORM suspend data", map[string]any{"error": err.Error()})
				return err
			}
			data, err := validateDocument(doc)
			if err != nil {
				c.sink.Error(debug.SourceData, "SCORM suspend data is not course data", map[string]any{"error": err.Error()})
				return err
			}
			c.replace(data)
			c.sink.Info(debug.SourceData, "Restored course data from SCORM", map[string]any{"keys": sortedKeys(data)})
			return nil
		}
	}

	raw, ok, err := c.store.Get(ctx, c.keys.CourseData)
	if err != nil {
		return fmt.Errorf("read course data: %w", err)
	}
	if !ok || raw == "" {
		c.sink.Info(debug.SourceData, "No course data to restore", nil)
		return nil
	}
	data, err := ParseDocument([]byte(raw))
	if err != nil {
		c.sink.Error(debug.SourceData, "Stored course data is invalid", map[string]any{"error": err.Error()})
		return err
	}
	c.replace(data)
	c.sink.Info(debug.SourceData, "Restored course data from local store", map[string]any{"keys": sortedKeys(data)})
	return nil
}

// Reset clears the map and record and cancels any pending persist. Stored
// data is not touched. A persist already in flight finishes first, so its
// record cannot outlive the reset.
func (c *Cache) Reset() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	clear(c.data)
	c.record = Record{}
	c.pending = false
	c.sink.Warn(debug.SourceData, "Course data reset", nil)
}

// Flush persists now if a debounced persist is waiting.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	armed := c.timer != nil
	c.stopTimerLocked()
	c.mu.Unlock()

	if !armed {
		return nil
	}
	return c.Persist(ctx, ReasonDebounced)
}

// Close cancels any pending persist.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Cache) replace(data map[string]Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
}

// stopTimerLocked cancels the armed timer. Bumping gen makes a callback
// that already started a no-op.
func (c *Cache) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// fire checks gen under persistMu so a Reset or SetValue that lands while
// the callback waits for the lock still cancels it.
func (c *Cache) fire(gen uint64) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	// persistLocked reports its own failures to the sink.
	_ = c.persistLocked(context.Background(), ReasonDebounced)
}

func validate(key string, v Value) error {
	switch n := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return &ValidationError{Key: key, Kind: "non-finite number"}
		}
		return nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return &ValidationError{Key: key, Kind: "non-finite number"}
		}
		return nil
	}
	return &ValidationError{Key: key, Kind: fmt.Sprintf("%T", v)}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
