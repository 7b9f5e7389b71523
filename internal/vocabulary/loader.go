package vocabulary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shubhsaxena/furniture-search/internal/observability"
)

const reloadDebounce = 250 * time.Millisecond

// Load reads a YAML vocabulary file and overlays every non-empty section onto
// the built-in tables. An empty path returns the defaults.
func Load(path string) (*Vocabulary, error) {
	tables := DefaultTables()
	if path == "" {
		return New(tables)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file: %w", err)
	}

	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	overlay(&tables, override)
	return New(tables)
}

func overlay(dst *Tables, src Tables) {
	if len(src.Synonyms) > 0 {
		dst.Synonyms = src.Synonyms
	}
	if len(src.Plurals) > 0 {
		dst.Plurals = src.Plurals
	}
	if len(src.StopWords) > 0 {
		dst.StopWords = src.StopWords
	}
	if len(src.PrimaryTypes) > 0 {
		dst.PrimaryTypes = src.PrimaryTypes
	}
	if len(src.Colors) > 0 {
		dst.Colors = src.Colors
	}
	if len(src.Materials) > 0 {
		dst.Materials = src.Materials
	}
	if len(src.ModifierGroups) > 0 {
		dst.ModifierGroups = src.ModifierGroups
	}
	if len(src.SeatableTypes) > 0 {
		dst.SeatableTypes = src.SeatableTypes
	}
	if len(src.Taxonomy) > 0 {
		dst.Taxonomy = src.Taxonomy
	}
}

// Watch reloads the vocabulary file whenever it changes and hands each valid
// snapshot to onChange. Invalid files are logged and the previous snapshot
// stays in effect. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// replace the file via rename are still observed.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Vocabulary)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving vocabulary path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	reloads := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	logger.Info("watching vocabulary file", zap.String("path", abs))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})

		case <-reloads:
			v, err := Load(abs)
			if err != nil {
				observability.VocabularyReloads.WithLabelValues("rejected").Inc()
				logger.Warn("vocabulary reload rejected", zap.String("path", abs), zap.Error(err))
				continue
			}
			observability.VocabularyReloads.WithLabelValues("success").Inc()
			logger.Info("vocabulary reloaded", zap.String("path", abs))
			onChange(v)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("vocabulary watcher error", zap.Error(err))
		}
	}
}
