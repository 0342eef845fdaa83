package dialog

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"faqbot/internal/domain"
)

// State is the lifecycle position of a session.
type State string

const (
	StateNew     State = "new"
	StateActive  State = "active"
	StateIdle    State = "idle"
	StateExpired State = "expired"
)

// Turn is one exchange kept in a session's history.
type Turn struct {
	At        time.Time     `json:"at"`
	Utterance string        `json:"utterance"`
	Answer    string        `json:"answer"`
	Method    domain.Method `json:"method"`
	Band      domain.Band   `json:"confidence"`
	MatchedID *int64        `json:"matched_id"`
}

// Session is a read-only copy of a session's context.
type Session struct {
	ID         string      `json:"id"`
	State      State       `json:"state"`
	LastIntent *int64      `json:"last_intent"`
	LastBand   domain.Band `json:"last_band"`
	Turns      int         `json:"turns"`
	History    []Turn      `json:"history"`
	CreatedAt  time.Time   `json:"created_at"`
	LastSeen   time.Time   `json:"last_seen"`
}

// session is the live context. mu serializes turns; seen and turns are also
// readable without it so the table never waits on a busy session.
type session struct {
	mu         sync.Mutex
	id         string
	createdAt  time.Time
	lastIntent *int64
	lastBand   domain.Band
	history    *Ring[Turn]

	seen  atomic.Int64 // unix nanos of the last completed turn
	turns atomic.Int64
}

func (s *session) lastSeen() time.Time { return time.Unix(0, s.seen.Load()).UTC() }

func (s *session) stateAt(now time.Time, idle, expire time.Duration) State {
	quiet := now.Sub(s.lastSeen())
	switch {
	case quiet >= expire:
		return StateExpired
	case s.turns.Load() == 0:
		return StateNew
	case quiet >= idle:
		return StateIdle
	default:
		return StateActive
	}
}

// table is the capped session map with least-recently-active eviction.
type table struct {
	mu      sync.Mutex
	byID    map[string]*list.Element
	lru     *list.List
	max     int
	history int
	idle    time.Duration
	expire  time.Duration
}

func newTable(max, history int, idle, expire time.Duration) *table {
	return &table{
		byID:    make(map[string]*list.Element),
		lru:     list.New(),
		max:     max,
		history: history,
		idle:    idle,
		expire:  expire,
	}
}

// acquire returns the session for id, creating it when absent or expired,
// and marks it most recently active. evicted lists sessions dropped to make
// room.
func (t *table) acquire(id string, now time.Time) (s *session, created bool, evicted []string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.byID[id]; ok {
		s = el.Value.(*session)
		if s.stateAt(now, t.idle, t.expire) != StateExpired {
			t.lru.MoveToFront(el)
			return s, false, nil, nil
		}
		t.lru.Remove(el)
		delete(t.byID, id)
	}

	for len(t.byID) >= t.max {
		back := t.lru.Back()
		if back == nil {
			return nil, false, nil, fmt.Errorf("session %s: %w", id, domain.ErrCapacity)
		}
		old := back.Value.(*session)
		t.lru.Remove(back)
		delete(t.byID, old.id)
		evicted = append(evicted, old.id)
	}

	s = &session{id: id, createdAt: now, history: NewRing[Turn](t.history)}
	s.seen.Store(now.UnixNano())
	t.byID[id] = t.lru.PushFront(s)
	return s, true, evicted, nil
}

// discard removes s if it is still the registered session for its id.
func (t *table) discard(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.byID[s.id]; ok && el.Value.(*session) == s {
		t.lru.Remove(el)
		delete(t.byID, s.id)
	}
}

// holds reports whether s is still the registered session for its id.
func (t *table) holds(s *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.byID[s.id]
	return ok && el.Value.(*session) == s
}

func (t *table) lookup(id string) (*session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*session), true
}

func (t *table) close(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.byID[id]
	if !ok {
		return false
	}
	t.lru.Remove(el)
	delete(t.byID, id)
	return true
}

// sweep purges expired sessions and counts the idle ones left.
func (t *table) sweep(now time.Time) (purged, idle int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for el := t.lru.Front(); el != nil; {
		next := el.Next()
		s := el.Value.(*session)
		switch s.stateAt(now, t.idle, t.expire) {
		case StateExpired:
			t.lru.Remove(el)
			delete(t.byID, s.id)
			purged++
		case StateIdle:
			idle++
		}
		el = next
	}
	return purged, idle
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
