package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/model"
)

// Seeder writes seed documents into a collection store. Unless overwrite is
// set, documents that already exist in the store are left alone; documents
// this Seeder wrote itself are rewritten whenever their file changes.
type Seeder struct {
	store     store.CollectionStore
	logger    *zap.Logger
	overwrite bool

	mu      sync.Mutex
	applied map[string]string // seed id → checksum last written
}

// NewSeeder creates a Seeder.
func NewSeeder(st store.CollectionStore, logger *zap.Logger, overwrite bool) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		store:     st,
		logger:    logger,
		overwrite: overwrite,
		applied:   make(map[string]string),
	}
}

// Apply writes every seed that is new or changed and returns how many were
// written. It stops at the first store failure.
func (s *Seeder) Apply(ctx context.Context, seeds []Seed) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, seed := range seeds {
		last, ours := s.applied[seed.ID]
		if ours && last == seed.Checksum {
			continue
		}
		if !ours && !s.overwrite {
			_, err := s.store.Get(ctx, seed.ID)
			if err == nil {
				s.logger.Debug("seed skipped; collection exists",
					zap.String("collection_id", seed.ID),
					zap.String("source", seed.SourceFile),
				)
				continue
			}
			if !model.IsCode(err, model.ErrNotFound) {
				return written, fmt.Errorf("seed %s: %w", seed.ID, err)
			}
		}

		if err := s.store.Set(ctx, seed.ID, seed.Data); err != nil {
			return written, fmt.Errorf("seed %s: %w", seed.ID, err)
		}
		s.applied[seed.ID] = seed.Checksum
		written++
		s.logger.Info("collection seeded",
			zap.String("collection_id", seed.ID),
			zap.String("source", seed.SourceFile),
		)
	}
	return written, nil
}
