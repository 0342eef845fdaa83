package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"faqbot/internal/dialog"
	"faqbot/internal/domain"
	"faqbot/internal/importer"
	"faqbot/internal/index"
	"faqbot/internal/logging"
	"faqbot/internal/store/jsonfile"
)

// UpsertInput is an administrative write. A nil ID appends a new record;
// otherwise the record with that id is replaced.
type UpsertInput struct {
	ID       *int64
	Question string
	Answer   string
	Category string
	Tags     []string
}

// Options holds the optional collaborators.
type Options struct {
	Store    domain.SnapshotStore
	Tagger   domain.Tagger
	AutoTags int
	Logger   log.FieldLogger
}

// Stats describes the engine for diagnostics.
type Stats struct {
	Index    index.Stats `json:"index"`
	Sessions int         `json:"sessions"`
}

// FAQService is the query surface exposed to hosts.
type FAQService struct {
	idx      *index.Index
	ctrl     *dialog.Controller
	store    domain.SnapshotStore
	tagger   domain.Tagger
	autoTags int
	log      log.FieldLogger
}

// NewFAQService wires the service over an index and a dialog controller.
func NewFAQService(idx *index.Index, ctrl *dialog.Controller, opts Options) *FAQService {
	return &FAQService{
		idx:      idx,
		ctrl:     ctrl,
		store:    opts.Store,
		tagger:   opts.Tagger,
		autoTags: opts.AutoTags,
		log:      logging.OrDiscard(opts.Logger),
	}
}

// Controller exposes the dialog controller for hosts that manage sessions.
func (s *FAQService) Controller() *dialog.Controller { return s.ctrl }

// Ask answers text within a session.
func (s *FAQService) Ask(ctx context.Context, sessionID, text string, k int) (domain.Envelope, error) {
	return s.ctrl.Ask(ctx, sessionID, text, k)
}

// Upsert validates and stores a record, returning its id.
func (s *FAQService) Upsert(in UpsertInput) (int64, error) {
	faq := domain.FAQ{
		Question: strings.TrimSpace(in.Question),
		Answer:   strings.TrimSpace(in.Answer),
		Category: strings.TrimSpace(in.Category),
		Tags:     domain.NormalizeTags(in.Tags),
	}
	if faq.Question == "" {
		return 0, fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput)
	}
	if faq.Answer == "" {
		return 0, fmt.Errorf("%w: answer must not be empty", domain.ErrInvalidInput)
	}
	if len(faq.Tags) == 0 && s.tagger != nil && s.autoTags > 0 {
		faq.Tags = domain.NormalizeTags(s.tagger.Tags(faq.Question+"\n"+faq.Answer, s.autoTags))
	}

	if in.ID == nil {
		id, err := s.idx.Append(faq)
		if err != nil {
			return 0, err
		}
		s.log.WithFields(log.Fields{"faq_id": id, "category": faq.Category}).Info("faq added")
		return id, nil
	}
	if err := s.idx.Update(*in.ID, faq); err != nil {
		return 0, err
	}
	s.log.WithField("faq_id", *in.ID).Info("faq replaced")
	return *in.ID, nil
}

// Import upserts every parsed entry in order. It stops at the first error
// and returns the ids stored so far.
func (s *FAQService) Import(entries []importer.Entry) ([]int64, error) {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		id, err := s.Upsert(UpsertInput{Question: e.Question, Answer: e.Answer, Category: e.Category, Tags: e.Tags})
		if err != nil {
			return ids, fmt.Errorf("import entry at line %d: %w", e.Line, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Remove deletes the record with id.
func (s *FAQService) Remove(id int64) error {
	if err := s.idx.Delete(id); err != nil {
		return err
	}
	s.log.WithField("faq_id", id).Info("faq removed")
	return nil
}

// Get returns one record.
func (s *FAQService) Get(id int64) (domain.FAQ, error) {
	return s.idx.Get(id)
}

// List returns the live records in insertion order.
func (s *FAQService) List() []domain.FAQ {
	entries := s.idx.Enumerate()
	out := make([]domain.FAQ, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.FAQ)
	}
	return out
}

// Refit rebuilds the vocabulary and returns its size.
func (s *FAQService) Refit() int {
	return s.idx.Refit()
}

// Stats reports index and session counters.
func (s *FAQService) Stats() Stats {
	return Stats{Index: s.idx.Stats(), Sessions: s.ctrl.Sessions()}
}

// Save writes a snapshot to the configured store.
func (s *FAQService) Save(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("%w: no snapshot store configured", domain.ErrPersistence)
	}
	snap, err := s.idx.Snapshot()
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, snap); err != nil {
		s.log.WithError(err).Error("snapshot save failed")
		return err
	}
	return nil
}

// Load replaces the engine state with a stored snapshot. An empty path reads
// the configured store; otherwise path names a JSON snapshot document. On
// error the previous state is kept.
func (s *FAQService) Load(ctx context.Context, path string) error {
	src := s.store
	if path != "" {
		src = jsonfile.New(path, s.log)
	}
	if src == nil {
		return fmt.Errorf("%w: no snapshot store configured", domain.ErrPersistence)
	}
	snap, err := src.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSnapshot) {
			s.log.WithError(err).Error("snapshot load failed")
		}
		return err
	}
	return s.idx.Restore(snap)
}
