// Package toast implements the transient notification stack shown next to the
// contact form.
//
// Each toast auto-dismisses after a fixed delay (3000 ms by default) and can be
// closed early. Storage is an expiring in-memory cache; eviction, whether by
// timer or by an explicit close, fires the container's change hook so the
// caller can re-render.
package toast

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultAutoClose is how long a toast stays up unless dismissed.
const DefaultAutoClose = 3000 * time.Millisecond

// Kind classifies toast presentation.
type Kind string

const (
	KindDefault Kind = "default"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// ParseKind maps a severity tag such as "Success" or "error" to a Kind.
// Anything unrecognized is the neutral default.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSuccess:
		return KindSuccess
	case KindError:
		return KindError
	default:
		return KindDefault
	}
}

// Position is where the container is anchored on screen.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

// ParsePosition validates a configured position.
func ParsePosition(s string) (Position, bool) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case PositionTopLeft, PositionTopRight, PositionTopCenter,
		PositionBottomLeft, PositionBottomRight, PositionBottomCenter:
		return p, true
	default:
		return "", false
	}
}

// Toast is one visible notification.
type Toast struct {
	ID        string
	Text      string
	Kind      Kind
	CreatedAt time.Time
	ExpiresAt time.Time

	seq uint64
}

// Options configures a Container.
type Options struct {
	// AutoClose defaults to DefaultAutoClose when zero.
	AutoClose time.Duration
	// Position defaults to bottom-left.
	Position Position
	// OnChange is called after a toast is added or removed. It must not call
	// back into the container synchronously while holding its own locks.
	OnChange func()
}

// Container holds the active toasts for one contact component.
type Container struct {
	cache     *gocache.Cache
	autoClose time.Duration
	position  Position
	onChange  func()
	now       func() time.Time
	seq       atomic.Uint64

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New creates a toast container.
func New(opts Options) *Container {
	autoClose := opts.AutoClose
	if autoClose <= 0 {
		autoClose = DefaultAutoClose
	}
	position := opts.Position
	if position == "" {
		position = PositionBottomLeft
	}

	c := &Container{
		// the janitor sweeps anything a timer missed
		cache:     gocache.New(autoClose, autoClose),
		autoClose: autoClose,
		position:  position,
		onChange:  opts.OnChange,
		now:       time.Now,
		timers:    make(map[string]*time.Timer),
	}
	c.cache.OnEvicted(func(id string, _ interface{}) {
		c.mu.Lock()
		if t, ok := c.timers[id]; ok {
			t.Stop()
			delete(c.timers, id)
		}
		c.mu.Unlock()
		c.changed()
	})

	return c
}

// Notify shows text with the given severity and returns the stored toast.
func (c *Container) Notify(text string, kind Kind) Toast {
	now := c.now()
	t := Toast{
		ID:        uuid.NewString(),
		Text:      text,
		Kind:      ParseKind(string(kind)),
		CreatedAt: now,
		ExpiresAt: now.Add(c.autoClose),
		seq:       c.seq.Add(1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return t
	}
	c.cache.Set(t.ID, t, c.autoClose)
	id := t.ID
	c.timers[id] = time.AfterFunc(c.autoClose, func() {
		c.cache.Delete(id)
	})
	c.mu.Unlock()

	c.changed()

	return t
}

// Dismiss closes a toast early. It reports whether the toast was still visible.
func (c *Container) Dismiss(id string) bool {
	if _, ok := c.cache.Get(id); !ok {
		return false
	}
	c.cache.Delete(id)

	return true
}

// Active returns the visible toasts, oldest first.
func (c *Container) Active() []Toast {
	items := c.cache.Items()
	toasts := make([]Toast, 0, len(items))
	for _, item := range items {
		if t, ok := item.Object.(Toast); ok {
			toasts = append(toasts, t)
		}
	}
	sort.Slice(toasts, func(i, j int) bool {
		return toasts[i].seq < toasts[j].seq
	})

	return toasts
}

// Position returns where the container is anchored.
func (c *Container) Position() Position {
	return c.position
}

// AutoClose returns the auto-dismiss delay.
func (c *Container) AutoClose() time.Duration {
	return c.autoClose
}

// Close stops pending timers and drops all toasts without firing OnChange.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.cache.Flush()
}

func (c *Container) changed() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || c.onChange == nil {
		return
	}
	c.onChange()
}
