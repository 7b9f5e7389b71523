package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/cache"
	"github.com/shubhsaxena/furniture-search/internal/indexing"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

const reloadInvalidateTimeout = 5 * time.Second

type vocabularySetter interface {
	SetVocabulary(vocab *vocabulary.Vocabulary)
}

// onVocabularyReload swaps the vocabulary and drops cached search and
// suggestion results ranked with the previous one. invalidator may be nil.
func onVocabularyReload(target vocabularySetter, invalidator indexing.CacheInvalidator, logger *zap.Logger) func(*vocabulary.Vocabulary) {
	return func(vocab *vocabulary.Vocabulary) {
		target.SetVocabulary(vocab)
		if invalidator == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), reloadInvalidateTimeout)
		defer cancel()
		if err := invalidator.InvalidatePattern(ctx, cache.CatalogPatterns); err != nil {
			logger.Warn("cache invalidation after vocabulary reload failed", zap.Error(err))
			return
		}
		logger.Info("vocabulary reloaded, cached results dropped")
	}
}
