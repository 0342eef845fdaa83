package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"faqbot/internal/config"
	"faqbot/internal/dialog"
	"faqbot/internal/domain"
	"faqbot/internal/embedding/tfidf"
	"faqbot/internal/index"
	"faqbot/internal/logging"
	"faqbot/internal/matcher"
	"faqbot/internal/normalize"
	"faqbot/internal/rules"
	"faqbot/internal/service"
	"faqbot/internal/store/jsonfile"
	"faqbot/internal/store/sqlite"
	"faqbot/internal/tagger"
)

// app holds the assembled components.
type app struct {
	cfg    *config.AppConfig
	log    *log.Logger
	ctrl   *dialog.Controller
	svc    *service.FAQService
	closer func() error
}

func (a *app) requestTimeout() time.Duration {
	return time.Duration(a.cfg.HTTP.RequestTimeoutMS) * time.Millisecond
}

func (a *app) close() {
	if a.closer == nil {
		return
	}
	if err := a.closer(); err != nil {
		a.log.WithError(err).Warn("close store")
	}
	a.closer = nil
}

func assemble(cfg *config.AppConfig) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	norm, err := buildNormalizer(cfg.Normalizer)
	if err != nil {
		return nil, err
	}

	vec := tfidf.NewVectorizer(norm, tfidf.Config{
		NgramRange: cfg.Vectorizer.NgramRange,
		MinDF:      cfg.Vectorizer.MinDF,
		MaxDF:      cfg.Vectorizer.MaxDF,
	})
	idx := index.New(vec, norm, index.Options{
		RefitBatch: cfg.Matcher.RefitBatch,
		Policy:     index.Policy(cfg.Matcher.RefitPolicy),
		Logger:     logger.WithField("component", "index"),
	})
	m := matcher.New(idx, matcher.Config{
		ThresholdLow:  cfg.Matcher.ThresholdLow,
		ThresholdHigh: cfg.Matcher.ThresholdHigh,
		TopK:          cfg.Matcher.TopK,
	})

	var engine *rules.Engine
	switch cfg.Rules.File {
	case "":
		engine = rules.Default()
	default:
		engine, err = rules.Load(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
	}

	ctrl := dialog.New(norm, engine, m, dialog.Config{
		FallbackMessage: cfg.Dialog.FallbackMessage,
		HistorySize:     cfg.Session.HistorySize,
		MaxSessions:     cfg.Session.MaxSessions,
		IdleAfter:       time.Duration(cfg.Session.IdleSeconds) * time.Second,
		ExpireAfter:     time.Duration(cfg.Session.ExpireSeconds) * time.Second,
		SweepEvery:      time.Duration(cfg.Session.SweepSeconds) * time.Second,
		Logger:          logger.WithField("component", "dialog"),
	})

	a := &app{cfg: cfg, log: logger, ctrl: ctrl}

	var st domain.SnapshotStore
	switch cfg.Storage.Type {
	case "json", "":
		st = jsonfile.New(cfg.Storage.Path, logger)
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		st = db
		a.closer = db.Close
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	var tg domain.Tagger
	if cfg.Tagger.AutoTags > 0 {
		tg = tagger.NewFrequencyTagger(norm)
	}

	a.svc = service.NewFAQService(idx, ctrl, service.Options{
		Store:    st,
		Tagger:   tg,
		AutoTags: cfg.Tagger.AutoTags,
		Logger:   logger.WithField("component", "service"),
	})

	if err := a.svc.Load(context.Background(), ""); err != nil && !errors.Is(err, domain.ErrNoSnapshot) {
		a.close()
		return nil, err
	}
	stats := a.svc.Stats().Index
	logger.WithFields(log.Fields{"faqs": stats.Live, "vocab_size": stats.VocabSize, "storage": cfg.Storage.Type}).Info("corpus loaded")
	return a, nil
}

func buildNormalizer(c config.NormalizerConfig) (*normalize.Normalizer, error) {
	var stop map[string]struct{}
	if c.StopwordsFile != "" {
		var err error
		if stop, err = normalize.LoadStopwords(c.StopwordsFile); err != nil {
			return nil, err
		}
	}

	var chain normalize.Chain
	if c.LemmaFile != "" {
		dict, err := normalize.LoadLemmaFile(c.LemmaFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, dict)
	}
	if strings.EqualFold(c.Stemmer, "snowball") {
		chain = append(chain, normalize.SnowballLemmatizer{})
	}
	var lemmas normalize.Lemmatizer
	if len(chain) > 0 {
		lemmas = chain
	}

	return normalize.New(normalize.Options{
		Casefold:           c.Casefold,
		StripPunctuation:   c.StripPunctuation,
		CollapseWhitespace: c.CollapseWhitespace,
		DropStopwords:      c.DropStopwords,
		Lemmatize:          c.Lemmatize,
	}, stop, lemmas), nil
}
