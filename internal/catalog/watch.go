package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/internal/store"
)

const defaultResubscribe = 5 * time.Second

// WatchOptions tunes Watch.
type WatchOptions struct {
	Logger *zap.Logger

	// Resubscribe is the pause before subscribing again after a
	// subscription ends early. Defaults to 5s.
	Resubscribe time.Duration

	// OnReload, if set, is called after each snapshot is applied with the
	// number of documents and the new checksum.
	OnReload func(documents int, checksum string)
}

// Watch subscribes to st and replaces the registry contents with every
// snapshot it delivers, until ctx is done. A failure of the first
// subscription is returned; later ones are logged and the subscription is
// re-established after opts.Resubscribe.
func Watch(ctx context.Context, reg *Registry, st store.CollectionStore, opts WatchOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pause := opts.Resubscribe
	if pause <= 0 {
		pause = defaultResubscribe
	}

	ch, err := st.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		for docs := range ch {
			_, span := observability.StartSpan(ctx, "catalog.reload", observability.AttrDocuments.Int(len(docs)))
			reg.Replace(docs)
			span.End()
			logger.Info("collection catalog reloaded",
				zap.Int("documents", reg.Len()),
				zap.Int("skipped", reg.Skipped()),
				zap.String("checksum", reg.Checksum()),
			)
			if opts.OnReload != nil {
				opts.OnReload(reg.Len(), reg.Checksum())
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		logger.Warn("collection subscription ended; resubscribing", zap.Duration("after", pause))
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pause):
			}
			ch, err = st.Subscribe(ctx)
			if err == nil {
				break
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("collection subscription failed", zap.Error(err))
		}
	}
}
