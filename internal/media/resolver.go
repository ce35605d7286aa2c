package media

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

const (
	refreshReasonMigration = "legacy_migration"
	refreshReasonExpiring  = "expiring"
	refreshReasonMissing   = "missing_url"
)

// Resolver keeps video references readable. It refreshes signed URLs before
// they expire, upgrades legacy key-only references to the structured form,
// and never fails a read: when signing is down, callers get the last known
// URL instead of an error.
//
// The resolver is pure with respect to storage. Callers persist any returned
// reference that differs from the stored one.
type Resolver struct {
	videos        VideoStore
	signTTL       time.Duration
	refreshMargin time.Duration
	workers       int
	logg          *logger.Logger
	metrics       *metrics.MediaMetrics

	now func() time.Time
}

func NewResolver(videos VideoStore, cfg config.ObjectStoreConfig, workers int, logg *logger.Logger, m *metrics.MediaMetrics) *Resolver {
	signTTL := cfg.MaxSignTTL
	if signTTL <= 0 || signTTL > config.SignTTLCap {
		signTTL = config.SignTTLCap
	}
	margin := cfg.RefreshMargin
	if margin <= 0 || margin >= signTTL {
		margin = 24 * time.Hour
	}
	if workers <= 0 {
		workers = 8
	}
	return &Resolver{
		videos:        videos,
		signTTL:       signTTL,
		refreshMargin: margin,
		workers:       workers,
		logg:          logg,
		metrics:       m,
		now:           time.Now,
	}
}

// Resolve returns a reference whose URL is safe to hand out, and whether it
// differs from the input (signaling the caller to persist it).
//
// Legacy full URLs pass through untouched: CDN-hosted ones never expire, and
// already presigned ones carry no recoverable key to re-sign. Legacy bare
// keys are upgraded to structured form; the upgrade is one way.
func (r *Resolver) Resolve(ctx context.Context, ref types.VideoRef) (types.VideoRef, bool) {
	if ref.IsZero() {
		return ref, false
	}

	if ref.IsLegacy() {
		if ref.LegacyIsURL() {
			// Presigned legacy URLs expire but carry no recoverable key, so
			// all we can do is hand them out and count them.
			if ref.LegacyIsPresigned() {
				r.metrics.IncLegacyPassthrough("presigned")
				r.logg.Warn(ctx, "presigned legacy video url served as-is, key not recoverable")
			} else {
				r.metrics.IncLegacyPassthrough("cdn")
			}
			return ref, false
		}
		fresh, ok := r.refresh(ctx, ref.LegacyValue(), refreshReasonMigration)
		if !ok {
			return ref, false
		}
		r.metrics.IncLegacyMigrated()
		return fresh, true
	}

	structured, _ := ref.Structured()
	reason, needed := r.refreshReason(structured)
	if !needed {
		return ref, false
	}

	fresh, ok := r.refresh(ctx, structured.Key, reason)
	if !ok {
		// Serve the stale URL; a possibly expired link beats a broken read.
		return ref, false
	}
	return fresh, true
}

// ResolveVariants refreshes every video reference in the variant set with
// bounded concurrency. Individual refresh failures are isolated; the method
// always returns a full variant list.
func (r *Resolver) ResolveVariants(ctx context.Context, variants types.VariantMediaList) (types.VariantMediaList, bool) {
	resolved := make(types.VariantMediaList, len(variants))
	copy(resolved, variants)

	type slot struct {
		variant int
		video   int
	}
	var slots []slot
	for vi, variant := range variants {
		for qi := range variant.Videos {
			slots = append(slots, slot{variant: vi, video: qi})
		}
	}
	if len(slots) == 0 {
		return resolved, false
	}

	// Copy video slices so writes do not alias the caller's records.
	for vi := range resolved {
		if len(resolved[vi].Videos) > 0 {
			resolved[vi].Videos = append([]types.VideoRef(nil), resolved[vi].Videos...)
		}
	}

	changedFlags := make([]bool, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for si, s := range slots {
		g.Go(func() error {
			fresh, changed := r.Resolve(gctx, resolved[s.variant].Videos[s.video])
			if changed {
				resolved[s.variant].Videos[s.video] = fresh
				changedFlags[si] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	anyChanged := false
	for _, changed := range changedFlags {
		if changed {
			anyChanged = true
			break
		}
	}
	return resolved, anyChanged
}

func (r *Resolver) refreshReason(ref types.StructuredVideoRef) (string, bool) {
	if ref.SignedURL == "" {
		return refreshReasonMissing, true
	}
	if ref.ExpiresAt == nil {
		return refreshReasonMissing, true
	}
	if ref.ExpiresAt.Sub(r.now()) <= r.refreshMargin {
		return refreshReasonExpiring, true
	}
	return "", false
}

func (r *Resolver) refresh(ctx context.Context, key string, reason string) (types.VideoRef, bool) {
	url, expiresAt, err := r.videos.SignGetURL(ctx, key, r.signTTL)
	if err != nil {
		r.metrics.IncSignFailure()
		r.logg.Warn(r.logg.WithObjectKey(ctx, key), "signed url refresh failed, serving stale reference")
		return types.VideoRef{}, false
	}
	r.metrics.IncSignRefresh(reason)
	return types.NewStructuredVideoRef(types.StructuredVideoRef{
		Key:         key,
		SignedURL:   url,
		ExpiresAt:   &expiresAt,
		GeneratedAt: r.now(),
	}), true
}
