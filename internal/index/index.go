// Package index holds the FAQ records together with their precomputed
// vectors. All vectors are produced by the index's own embedder, and every
// mutation that changes the vocabulary recomputes them under the write lock,
// so readers always see a consistent (records, vectors, vocabulary) triple.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"faqbot/internal/domain"
	"faqbot/internal/embedding"
	"faqbot/internal/logging"
	"faqbot/internal/normalize"
)

// Policy selects when the vectorizer is refitted after mutations.
type Policy string

const (
	// PolicyBatched refits once more than RefitBatch mutations are pending.
	PolicyBatched Policy = "batched"
	// PolicyEager refits after every mutation.
	PolicyEager Policy = "eager"
)

// DefaultRefitBatch is the number of pending mutations tolerated before a refit.
const DefaultRefitBatch = 25

// checkEvery is how many entries Score scans between context checks.
const checkEvery = 64

// shadowEpsilon absorbs rounding when comparing a vector's self-similarity
// with its similarity to another entry.
const shadowEpsilon = 1e-9

// Options configures an Index.
type Options struct {
	RefitBatch int
	Policy     Policy
	Logger     log.FieldLogger
	Now        func() time.Time
}

// Entry is a live record with its normalized tokens and vector.
type Entry struct {
	FAQ    domain.FAQ
	Tokens []string
	Vector embedding.Vector
}

// Hit is a scored entry returned by Score.
type Hit struct {
	FAQ   domain.FAQ
	Score float64
}

// Stats summarizes the index.
type Stats struct {
	Live       int   `json:"live"`
	Tombstones int   `json:"tombstones"`
	Pending    int   `json:"pending"`
	VocabSize  int   `json:"vocab_size"`
	NextID     int64 `json:"next_id"`
	Fitted     bool  `json:"fitted"`
}

type slot struct {
	faq     domain.FAQ
	tokens  []string
	vec     embedding.Vector
	deleted bool
}

// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	emb     embedding.Embedder
	norm    *normalize.Normalizer
	slots   []slot
	pos     map[int64]int
	nextID  int64
	live    int
	pending int

	batch  int
	policy Policy
	log    log.FieldLogger
	now    func() time.Time
}

// New creates an empty index. emb must tokenize with the same normalizer
// profile as norm.
func New(emb embedding.Embedder, norm *normalize.Normalizer, opts Options) *Index {
	if opts.RefitBatch < 1 {
		opts.RefitBatch = DefaultRefitBatch
	}
	if opts.Policy == "" {
		opts.Policy = PolicyBatched
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Index{
		emb:    emb,
		norm:   norm,
		pos:    make(map[int64]int),
		nextID: 1,
		batch:  opts.RefitBatch,
		policy: opts.Policy,
		log:    logging.OrDiscard(opts.Logger),
		now:    opts.Now,
	}
}

// Append stores faq under the next identifier and returns it. The ID field of
// faq is ignored.
func (x *Index) Append(faq domain.FAQ) (int64, error) {
	if err := validate(faq); err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	faq = prepare(faq)
	faq.ID = x.nextID
	if faq.CreatedAt.IsZero() {
		faq.CreatedAt = x.now().UTC()
	}
	x.nextID++
	x.slots = append(x.slots, slot{faq: faq, tokens: x.norm.Normalize(faq.Question)})
	x.pos[faq.ID] = len(x.slots) - 1
	x.live++
	x.pending++
	x.afterWrite(len(x.slots) - 1)

	x.log.WithFields(log.Fields{"faq_id": faq.ID, "pending": x.pending}).Debug("faq appended")
	return faq.ID, nil
}

// Update replaces the record at id as a whole. A zero CreatedAt keeps the
// original timestamp.
func (x *Index) Update(id int64, faq domain.FAQ) error {
	if err := validate(faq); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	i, ok := x.pos[id]
	if !ok || x.slots[i].deleted {
		return fmt.Errorf("update faq %d: %w", id, domain.ErrNotFound)
	}
	faq = prepare(faq)
	faq.ID = id
	if faq.CreatedAt.IsZero() {
		faq.CreatedAt = x.slots[i].faq.CreatedAt
	}
	x.slots[i] = slot{faq: faq, tokens: x.norm.Normalize(faq.Question)}
	x.pending++
	x.afterWrite(i)

	x.log.WithFields(log.Fields{"faq_id": id, "pending": x.pending}).Debug("faq updated")
	return nil
}

// Delete tombstones id. Identifiers are never reused.
func (x *Index) Delete(id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	i, ok := x.pos[id]
	if !ok || x.slots[i].deleted {
		return fmt.Errorf("delete faq %d: %w", id, domain.ErrNotFound)
	}
	x.slots[i] = slot{faq: domain.FAQ{ID: id}, deleted: true}
	x.live--
	x.pending++
	if x.policy == PolicyEager || x.pending > x.batch {
		x.refitLocked()
	}

	x.log.WithField("faq_id", id).Debug("faq deleted")
	return nil
}

// Get returns a copy of the live record with the given id.
func (x *Index) Get(id int64) (domain.FAQ, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.pos[id]
	if !ok || x.slots[i].deleted {
		return domain.FAQ{}, fmt.Errorf("get faq %d: %w", id, domain.ErrNotFound)
	}
	return x.slots[i].faq.Clone(), nil
}

// Enumerate returns the live entries in insertion order.
func (x *Index) Enumerate() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Entry, 0, x.live)
	for _, s := range x.slots {
		if s.deleted {
			continue
		}
		out = append(out, Entry{
			FAQ:    s.faq.Clone(),
			Tokens: append([]string(nil), s.tokens...),
			Vector: s.vec.Clone(),
		})
	}
	return out
}

// Len returns the number of live records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.live
}

// Refit rebuilds the vocabulary from the live questions and recomputes every
// vector. It returns the new vocabulary size.
func (x *Index) Refit() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.refitLocked()
	return x.emb.Dimension()
}

// Stats reports counters for diagnostics.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		Live:       x.live,
		Tombstones: len(x.slots) - x.live,
		Pending:    x.pending,
		VocabSize:  x.emb.Dimension(),
		NextID:     x.nextID,
		Fitted:     x.emb.Fitted(),
	}
}

// Score transforms text and returns every live entry whose similarity is at
// least floor, in insertion order. An unfitted index or a zero query vector
// yields no hits. If ctx ends mid-scan the partial result is discarded; an
// exceeded deadline is reported as domain.ErrTimeout.
func (x *Index) Score(ctx context.Context, text string, floor float64) ([]Hit, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.emb.Fitted() {
		return nil, nil
	}
	q, err := x.emb.Transform(text)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	if q.IsZero() {
		return nil, nil
	}

	var hits []Hit
	for i, s := range x.slots {
		if i%checkEvery == 0 {
			if err := ctxErr(ctx); err != nil {
				return nil, err
			}
		}
		if s.deleted || s.vec.IsZero() {
			continue
		}
		score := embedding.Dot(q, s.vec)
		if score < floor {
			continue
		}
		hits = append(hits, Hit{FAQ: s.faq.Clone(), Score: score})
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return hits, nil
}

// Snapshot exports the live records, tombstoned ids, next id and vectorizer
// state.
func (x *Index) Snapshot() (domain.Snapshot, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := domain.Snapshot{
		FAQs:   make([]domain.FAQ, 0, x.live),
		NextID: x.nextID,
	}
	for _, s := range x.slots {
		if s.deleted {
			snap.Tombstones = append(snap.Tombstones, s.faq.ID)
			continue
		}
		snap.FAQs = append(snap.FAQs, s.faq.Clone())
	}
	if x.emb.Fitted() {
		st, err := x.emb.State()
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%w: export vectorizer: %w", domain.ErrPersistence, err)
		}
		snap.Vectorizer = &st
	}
	return snap, nil
}

// Restore replaces the whole index with snap. The snapshot is validated
// before anything changes; on error the index keeps its previous state.
// Vectors are recomputed from the restored vectorizer state, or from a fresh
// fit when the snapshot carries none.
func (x *Index) Restore(snap domain.Snapshot) error {
	slots, nextID, err := buildSlots(snap, x.now().UTC())
	if err != nil {
		return fmt.Errorf("%w: restore: %w", domain.ErrPersistence, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if snap.Vectorizer != nil {
		if err := x.emb.Restore(*snap.Vectorizer); err != nil {
			return fmt.Errorf("%w: restore: %w", domain.ErrPersistence, err)
		}
	}

	x.slots = slots
	x.nextID = nextID
	x.pos = make(map[int64]int, len(slots))
	x.live = 0
	for i := range x.slots {
		x.pos[x.slots[i].faq.ID] = i
		if !x.slots[i].deleted {
			x.slots[i].tokens = x.norm.Normalize(x.slots[i].faq.Question)
			x.live++
		}
	}
	if snap.Vectorizer == nil {
		x.refitLocked()
	} else {
		x.recomputeLocked()
		x.pending = 0
	}

	x.log.WithFields(log.Fields{
		"faqs":       x.live,
		"tombstones": len(x.slots) - x.live,
		"vocab_size": x.emb.Dimension(),
	}).Info("index restored")
	return nil
}

// afterWrite vectorizes slot i, refitting first when the policy requires it
// or when the current vocabulary cannot represent the new question.
func (x *Index) afterWrite(i int) {
	if !x.emb.Fitted() || x.policy == PolicyEager || x.pending > x.batch {
		x.refitLocked()
		return
	}
	x.slots[i].vec = x.vectorize(x.slots[i].faq.Question)
	if (x.slots[i].vec.IsZero() && len(x.slots[i].tokens) > 0) || x.shadowed(i) {
		x.refitLocked()
	}
}

// shadowed reports whether another live entry scores at least as high as slot
// i against slot i's own vector. That happens when the question's distinctive
// n-grams are outside the current vocabulary.
func (x *Index) shadowed(i int) bool {
	v := x.slots[i].vec
	if v.IsZero() {
		return false
	}
	self := embedding.Dot(v, v)
	for j, s := range x.slots {
		if j == i || s.deleted || s.vec.IsZero() {
			continue
		}
		if embedding.Dot(v, s.vec) >= self-shadowEpsilon {
			return true
		}
	}
	return false
}

func (x *Index) refitLocked() {
	corpus := make([]string, 0, x.live)
	for _, s := range x.slots {
		if !s.deleted {
			corpus = append(corpus, s.faq.Question)
		}
	}
	start := time.Now()
	x.emb.Fit(corpus)
	x.recomputeLocked()
	x.pending = 0
	x.log.WithFields(log.Fields{
		"docs":       len(corpus),
		"vocab_size": x.emb.Dimension(),
		"took":       time.Since(start),
	}).Info("vectorizer refitted")
}

func (x *Index) recomputeLocked() {
	for i := range x.slots {
		if x.slots[i].deleted {
			x.slots[i].vec = embedding.Vector{}
			continue
		}
		x.slots[i].vec = x.vectorize(x.slots[i].faq.Question)
	}
}

func (x *Index) vectorize(text string) embedding.Vector {
	v, err := x.emb.Transform(text)
	if err != nil {
		// Only reachable when unfitted, which callers rule out.
		x.log.WithError(err).Warn("transform failed")
		return embedding.Vector{}
	}
	return v
}

func validate(faq domain.FAQ) error {
	if strings.TrimSpace(faq.Question) == "" {
		return fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(faq.Answer) == "" {
		return fmt.Errorf("%w: answer is empty", domain.ErrInvalidInput)
	}
	return nil
}

// prepare copies faq and fills in the documented defaults.
func prepare(faq domain.FAQ) domain.FAQ {
	faq = faq.Clone()
	if strings.TrimSpace(faq.Category) == "" {
		faq.Category = domain.DefaultCategory
	}
	faq.Tags = domain.NormalizeTags(faq.Tags)
	return faq
}

// buildSlots validates snap and lays out its entries in id order. A record
// without created_at is stamped with now.
func buildSlots(snap domain.Snapshot, now time.Time) ([]slot, int64, error) {
	seen := make(map[int64]struct{}, len(snap.FAQs)+len(snap.Tombstones))
	var maxID int64
	slots := make([]slot, 0, len(snap.FAQs)+len(snap.Tombstones))
	for _, f := range snap.FAQs {
		if f.ID < 1 {
			return nil, 0, fmt.Errorf("faq with invalid id %d", f.ID)
		}
		if _, dup := seen[f.ID]; dup {
			return nil, 0, fmt.Errorf("duplicate id %d", f.ID)
		}
		if err := validate(f); err != nil {
			return nil, 0, fmt.Errorf("faq %d: %w", f.ID, err)
		}
		seen[f.ID] = struct{}{}
		f = prepare(f)
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		slots = append(slots, slot{faq: f})
		if f.ID > maxID {
			maxID = f.ID
		}
	}
	for _, id := range snap.Tombstones {
		if id < 1 {
			return nil, 0, fmt.Errorf("tombstone with invalid id %d", id)
		}
		if _, dup := seen[id]; dup {
			return nil, 0, fmt.Errorf("tombstone %d collides with another entry", id)
		}
		seen[id] = struct{}{}
		slots = append(slots, slot{faq: domain.FAQ{ID: id}, deleted: true})
		if id > maxID {
			maxID = id
		}
	}
	nextID := snap.NextID
	switch {
	case nextID == 0:
		nextID = maxID + 1
	case nextID <= maxID:
		return nil, 0, errors.New("next_id does not exceed every stored id")
	}
	// Insertion order equals id order because ids are assigned monotonically.
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].faq.ID < slots[j].faq.ID })
	return slots, nextID, nil
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return err
	}
}
