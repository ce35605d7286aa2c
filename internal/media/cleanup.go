package media

import (
	"context"
	"sync"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

// Cleaner removes the durable assets behind a deleted item's variants.
// Deletion is best-effort housekeeping: every key gets an attempt, failures
// are logged and counted, and the caller's delete never fails because of
// them.
type Cleaner struct {
	images  ImageBackend
	videos  VideoStore
	logg    *logger.Logger
	metrics *metrics.MediaMetrics
}

// CleanupReport summarizes one cleanup pass for logging and retry queues.
type CleanupReport struct {
	Attempted  int
	FailedKeys []string
}

func NewCleaner(images ImageBackend, videos VideoStore, logg *logger.Logger, m *metrics.MediaMetrics) *Cleaner {
	return &Cleaner{
		images:  images,
		videos:  videos,
		logg:    logg,
		metrics: m,
	}
}

// CollectObjectKeys extracts every durable-store key referenced by the
// variant set. Legacy CDN URLs and presigned URLs carry nothing to delete
// and are skipped.
func CollectObjectKeys(variants types.VariantMediaList) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, variant := range variants {
		for _, video := range variant.Videos {
			key := video.ObjectKey()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// Cleanup deletes every video object and image asset referenced by the
// variant set, fanning out fully in parallel. It returns a report, never an
// error.
func (c *Cleaner) Cleanup(ctx context.Context, variants types.VariantMediaList) CleanupReport {
	keys := CollectObjectKeys(variants)
	publicIDs := collectImagePublicIDs(variants)

	report := CleanupReport{Attempted: len(keys) + len(publicIDs)}
	if report.Attempted == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.videos.Delete(ctx, key); err != nil {
				c.metrics.IncDeleteFailure()
				c.logg.Warn(c.logg.WithObjectKey(ctx, key), "video object deletion failed")
				mu.Lock()
				report.FailedKeys = append(report.FailedKeys, key)
				mu.Unlock()
			}
		}()
	}
	for _, publicID := range publicIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.images.Destroy(ctx, publicID); err != nil {
				c.metrics.IncDeleteFailure()
				c.logg.Warn(ctx, "image asset deletion failed")
			}
		}()
	}
	wg.Wait()

	return report
}

// DeleteKeys deletes bare object keys, used by the sweep worker when
// retrying cleanup from a recorded event rather than a live variant set.
func (c *Cleaner) DeleteKeys(ctx context.Context, keys []string) CleanupReport {
	report := CleanupReport{Attempted: len(keys)}
	if len(keys) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.videos.Delete(ctx, key); err != nil {
				c.metrics.IncDeleteFailure()
				c.logg.Warn(c.logg.WithObjectKey(ctx, key), "video object deletion failed")
				mu.Lock()
				report.FailedKeys = append(report.FailedKeys, key)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return report
}

func collectImagePublicIDs(variants types.VariantMediaList) []string {
	var publicIDs []string
	seen := make(map[string]struct{})
	for _, variant := range variants {
		for _, imageURL := range variant.Images {
			if !imagecdn.IsDeliveryURL(imageURL) {
				continue
			}
			publicID := imagecdn.PublicIDFromURL(imageURL)
			if publicID == "" {
				continue
			}
			if _, dup := seen[publicID]; dup {
				continue
			}
			seen[publicID] = struct{}{}
			publicIDs = append(publicIDs, publicID)
		}
	}
	return publicIDs
}
