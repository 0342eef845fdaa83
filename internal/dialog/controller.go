// Package dialog composes the rule engine and the intent matcher into the
// conversational entry point, and keeps per-session context.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"faqbot/internal/domain"
	"faqbot/internal/logging"
	"faqbot/internal/matcher"
	"faqbot/internal/normalize"
	"faqbot/internal/rules"
)

// DefaultFallbackMessage is returned when nothing matches.
const DefaultFallbackMessage = "Sorry, I don't know the answer to that yet."

// Config configures a Controller.
type Config struct {
	FallbackMessage string
	HistorySize     int
	MaxSessions     int
	IdleAfter       time.Duration
	ExpireAfter     time.Duration
	SweepEvery      time.Duration

	Logger log.FieldLogger
	Now    func() time.Time
}

// DefaultConfig returns the default session policy.
func DefaultConfig() Config {
	return Config{
		FallbackMessage: DefaultFallbackMessage,
		HistorySize:     8,
		MaxSessions:     10000,
		IdleAfter:       5 * time.Minute,
		ExpireAfter:     30 * time.Minute,
		SweepEvery:      time.Minute,
	}
}

// Ranker is the retrieval stage. *matcher.Matcher implements it.
type Ranker interface {
	Rank(ctx context.Context, text string, k int) ([]domain.Result, error)
}

var _ Ranker = (*matcher.Matcher)(nil)

// Controller is safe for concurrent use. Turns within one session are
// serialized; different sessions proceed in parallel.
type Controller struct {
	norm     *normalize.Normalizer
	rules    atomic.Pointer[rules.Engine]
	ranker   Ranker
	sessions *table
	cfg      Config
	log      log.FieldLogger
	now      func() time.Time
}

// New wires a controller. A nil engine disables the rule stage.
func New(norm *normalize.Normalizer, engine *rules.Engine, ranker Ranker, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = def.FallbackMessage
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = def.ExpireAfter
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = def.SweepEvery
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Controller{
		norm:     norm,
		ranker:   ranker,
		sessions: newTable(cfg.MaxSessions, cfg.HistorySize, cfg.IdleAfter, cfg.ExpireAfter),
		cfg:      cfg,
		log:      logging.OrDiscard(cfg.Logger),
		now:      cfg.Now,
	}
	c.rules.Store(engine)
	return c
}

// SetRules atomically replaces the rule engine used by subsequent turns.
func (c *Controller) SetRules(engine *rules.Engine) {
	c.rules.Store(engine)
}

// Ask answers one utterance in the given session. k < 1 selects the
// matcher's top_k. Below-threshold retrieval is not an error: it yields a
// fallback envelope. On error the session is left untouched.
func (c *Controller) Ask(ctx context.Context, sessionID, text string, k int) (domain.Envelope, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Envelope{}, fmt.Errorf("%w: session id is empty", domain.ErrInvalidInput)
	}

	s, created, err := c.lockSession(sessionID)
	if err != nil {
		return domain.Envelope{}, err
	}

	env, err := c.answer(ctx, s, text, k)
	if err != nil {
		if created {
			c.sessions.discard(s)
		}
		s.mu.Unlock()
		return domain.Envelope{}, err
	}
	c.record(s, text, env)
	turns := s.turns.Load()
	s.mu.Unlock()

	c.log.WithFields(log.Fields{
		"session": sessionID,
		"turn":    turns,
		"method":  env.Method,
		"score":   env.Score,
	}).Debug("answered")
	return env, nil
}

// lockSession returns the registered session for id with its mutex held. A
// session dropped from the table while the caller waited for it is not used;
// the lookup is repeated instead.
func (c *Controller) lockSession(id string) (*session, bool, error) {
	for {
		s, created, evicted, err := c.sessions.acquire(id, c.now())
		if err != nil {
			return nil, false, err
		}
		if len(evicted) > 0 {
			c.log.WithField("evicted", evicted).Info("session table full, evicted least recently active")
		}
		s.mu.Lock()
		if c.sessions.holds(s) {
			return s, created, nil
		}
		s.mu.Unlock()
	}
}

// answer runs the pipeline. Caller holds s.mu.
func (c *Controller) answer(ctx context.Context, s *session, text string, k int) (domain.Envelope, error) {
	tokens := c.norm.Normalize(text)
	if m, ok := c.rules.Load().TryMatch(tokens, int(s.turns.Load())); ok {
		return domain.Envelope{
			Answer:       m.Response,
			Score:        0,
			Confidence:   domain.BandHigh,
			Method:       domain.MethodRule,
			Alternatives: []domain.Alternative{},
			Rule:         m.Group,
		}, nil
	}

	results, err := c.ranker.Rank(ctx, text, k)
	if err != nil {
		return domain.Envelope{}, err
	}
	if len(results) == 0 {
		return c.fallback(), nil
	}

	top := results[0]
	id := top.FAQ.ID
	env := domain.Envelope{
		Answer:       top.FAQ.Answer,
		MatchedID:    &id,
		Score:        top.Score,
		Confidence:   top.Band,
		Method:       domain.MethodRetrieval,
		Alternatives: make([]domain.Alternative, 0, len(results)-1),
	}
	for _, r := range results[1:] {
		env.Alternatives = append(env.Alternatives, domain.Alternative{
			ID:       r.FAQ.ID,
			Question: r.FAQ.Question,
			Answer:   r.FAQ.Answer,
			Score:    r.Score,
		})
	}
	return env, nil
}

func (c *Controller) fallback() domain.Envelope {
	return domain.Envelope{
		Answer:       c.cfg.FallbackMessage,
		Confidence:   domain.BandNone,
		Method:       domain.MethodFallback,
		Alternatives: []domain.Alternative{},
	}
}

// record updates the session after a successful turn. Caller holds s.mu.
func (c *Controller) record(s *session, text string, env domain.Envelope) {
	now := c.now()
	if env.MatchedID != nil {
		id := *env.MatchedID
		s.lastIntent = &id
	} else {
		s.lastIntent = nil
	}
	s.lastBand = env.Confidence
	s.history.Push(Turn{
		At:        now,
		Utterance: text,
		Answer:    env.Answer,
		Method:    env.Method,
		Band:      env.Confidence,
		MatchedID: s.lastIntent,
	})
	s.turns.Add(1)
	s.seen.Store(now.UnixNano())
}

// Session returns a copy of the session's context.
func (c *Controller) Session(id string) (Session, bool) {
	s, ok := c.sessions.lookup(id)
	if !ok {
		return Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Session{
		ID:        s.id,
		State:     s.stateAt(c.now(), c.cfg.IdleAfter, c.cfg.ExpireAfter),
		LastBand:  s.lastBand,
		Turns:     int(s.turns.Load()),
		History:   s.history.Items(),
		CreatedAt: s.createdAt,
		LastSeen:  s.lastSeen(),
	}
	if s.lastIntent != nil {
		id := *s.lastIntent
		out.LastIntent = &id
	}
	return out, true
}

// Close ends a session explicitly. It reports whether the session existed.
func (c *Controller) Close(id string) bool {
	return c.sessions.close(id)
}

// Sessions returns the number of tracked sessions.
func (c *Controller) Sessions() int {
	return c.sessions.len()
}

// Sweep purges expired sessions and returns how many were removed.
func (c *Controller) Sweep() int {
	purged, idle := c.sessions.sweep(c.now())
	if purged > 0 {
		c.log.WithFields(log.Fields{"purged": purged, "idle": idle}).Info("session sweep")
	}
	return purged
}

// Run sweeps sessions periodically until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}
