package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

// Ingestor turns per-variant upload payloads into persisted-ready
// VariantMediaRecords. An ingestion call is atomic per request: validation
// runs before any upload, and any upload failure aborts the whole call.
type Ingestor struct {
	images     ImageBackend
	videos     VideoStore
	retries    int
	retryDelay time.Duration
	signTTL    time.Duration
	logg       *logger.Logger
	metrics    *metrics.MediaMetrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewIngestor(images ImageBackend, videos VideoStore, cfg config.MediaConfig, signTTL time.Duration, logg *logger.Logger, m *metrics.MediaMetrics) *Ingestor {
	retries := cfg.UploadRetries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.UploadRetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	if signTTL <= 0 || signTTL > config.SignTTLCap {
		signTTL = config.SignTTLCap
	}
	return &Ingestor{
		images:     images,
		videos:     videos,
		retries:    retries,
		retryDelay: delay,
		signTTL:    signTTL,
		logg:       logg,
		metrics:    m,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Ingest builds fresh records for a new item. Every variant must submit at
// least one image or video.
func (i *Ingestor) Ingest(ctx context.Context, inputs []VariantInput) (types.VariantMediaList, error) {
	return i.run(ctx, nil, inputs)
}

// Reingest builds records for an existing item. A variant that submits no
// new payload for one medium carries that medium forward from the existing
// record matched by normalized color; a variant that submits a new payload
// replaces that medium's list entirely.
func (i *Ingestor) Reingest(ctx context.Context, existing types.VariantMediaList, inputs []VariantInput) (types.VariantMediaList, error) {
	return i.run(ctx, existing, inputs)
}

func (i *Ingestor) run(ctx context.Context, existing types.VariantMediaList, inputs []VariantInput) (types.VariantMediaList, error) {
	if err := validateInputs(existing, inputs); err != nil {
		return nil, err
	}

	records := make(types.VariantMediaList, len(inputs))
	tracker := newUploadTracker()

	g, gctx := errgroup.WithContext(ctx)
	for idx, input := range inputs {
		g.Go(func() error {
			record, err := i.ingestVariant(gctx, existing, input, tracker)
			if err != nil {
				return err
			}
			records[idx] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		i.rollback(ctx, tracker)
		return nil, err
	}
	return records, nil
}

// validateInputs runs entirely before the first upload so a doomed request
// never creates partial state.
func validateInputs(existing types.VariantMediaList, inputs []VariantInput) error {
	if len(inputs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one variant is required")
	}

	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		color := types.NormalizeColor(input.Color)
		if color == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant color is required")
		}
		if _, dup := seen[color]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate variant color %q", color))
		}
		seen[color] = struct{}{}

		if input.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant %q stock must not be negative", color))
		}

		if len(input.Images) > 0 || len(input.Videos) > 0 {
			continue
		}
		if prior, ok := existing.FindByColor(color); ok && prior.HasMedia() {
			continue
		}
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variant %q needs at least one image or video", color))
	}
	return nil
}

func (i *Ingestor) ingestVariant(ctx context.Context, existing types.VariantMediaList, input VariantInput, tracker *uploadTracker) (types.VariantMediaRecord, error) {
	color := types.NormalizeColor(input.Color)
	prior, hasPrior := existing.FindByColor(color)

	record := types.VariantMediaRecord{
		Color:  color,
		Images: []string{},
		Videos: []types.VideoRef{},
		Stock:  input.Stock,
	}
	if hasPrior && len(input.Images) == 0 {
		record.Images = append(record.Images, prior.Images...)
	}
	if hasPrior && len(input.Videos) == 0 {
		record.Videos = append(record.Videos, prior.Videos...)
	}

	// Image and video uploads for one variant are independent.
	var (
		mu     sync.Mutex
		images []string
		videos []types.VideoRef
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(input.Images) > 0 {
		g.Go(func() error {
			uploaded, err := i.uploadImages(gctx, color, input.Images, tracker)
			if err != nil {
				return err
			}
			mu.Lock()
			images = uploaded
			mu.Unlock()
			return nil
		})
	}
	if len(input.Videos) > 0 {
		g.Go(func() error {
			uploaded, err := i.uploadVideos(gctx, color, input.Videos, tracker)
			if err != nil {
				return err
			}
			mu.Lock()
			videos = uploaded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.VariantMediaRecord{}, err
	}

	if len(input.Images) > 0 {
		record.Images = images
	}
	if len(input.Videos) > 0 {
		record.Videos = videos
	}
	return record, nil
}

// uploadImages pushes the variant's images in submission order, retrying
// each transient failure up to the configured bound.
func (i *Ingestor) uploadImages(ctx context.Context, color string, files []FileInput, tracker *uploadTracker) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, file := range files {
		result, err := i.uploadImageWithRetry(ctx, file)
		if err != nil {
			i.metrics.IncUploadFailure("image")
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpload, err,
				fmt.Sprintf("uploading image %q for variant %q", file.FileName, color))
		}
		tracker.addImage(result.PublicID)
		urls = append(urls, result.SecureURL)
	}
	return urls, nil
}

func (i *Ingestor) uploadImageWithRetry(ctx context.Context, file FileInput) (imagecdn.UploadResult, error) {
	var lastErr error
	for attempt := 1; attempt <= i.retries; attempt++ {
		result, err := i.uploadImageOnce(ctx, file)
		if err == nil {
			i.metrics.IncUploadSuccess("image")
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < i.retries {
			i.metrics.IncUploadRetry("image")
			i.logg.Warn(i.logg.WithField(ctx, "attempt", attempt), "image upload failed, retrying")
			if err := i.sleep(ctx, i.retryDelay); err != nil {
				break
			}
		}
	}
	return imagecdn.UploadResult{}, lastErr
}

func (i *Ingestor) uploadImageOnce(ctx context.Context, file FileInput) (imagecdn.UploadResult, error) {
	body, err := file.Open()
	if err != nil {
		return imagecdn.UploadResult{}, fmt.Errorf("opening image payload: %w", err)
	}
	defer func() { _ = body.Close() }()

	started := i.now()
	result, err := i.images.Upload(ctx, file.FileName, body)
	if err != nil {
		return imagecdn.UploadResult{}, err
	}
	i.metrics.ObserveUpload("image", i.now().Sub(started))
	return result, nil
}

// uploadVideos stores each video under a fresh key and immediately signs a
// GET URL for it. A video without a working signed URL is not an upload.
func (i *Ingestor) uploadVideos(ctx context.Context, color string, files []FileInput, tracker *uploadTracker) ([]types.VideoRef, error) {
	refs := make([]types.VideoRef, 0, len(files))
	for _, file := range files {
		ref, err := i.uploadVideo(ctx, file, tracker)
		if err != nil {
			i.metrics.IncUploadFailure("video")
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpload, err,
				fmt.Sprintf("uploading video %q for variant %q", file.FileName, color))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (i *Ingestor) uploadVideo(ctx context.Context, file FileInput, tracker *uploadTracker) (types.VideoRef, error) {
	body, err := file.Open()
	if err != nil {
		return types.VideoRef{}, fmt.Errorf("opening video payload: %w", err)
	}
	defer func() { _ = body.Close() }()

	now := i.now()
	key := buildObjectKey(now, file.FileName)

	started := now
	if err := i.videos.Put(ctx, key, body, file.ContentType); err != nil {
		return types.VideoRef{}, err
	}
	tracker.addVideo(key)
	i.metrics.ObserveUpload("video", i.now().Sub(started))

	url, expiresAt, err := i.videos.SignGetURL(ctx, key, i.signTTL)
	if err != nil {
		return types.VideoRef{}, fmt.Errorf("signing initial url: %w", err)
	}
	i.metrics.IncUploadSuccess("video")

	return types.NewStructuredVideoRef(types.StructuredVideoRef{
		Key:         key,
		SignedURL:   url,
		ExpiresAt:   &expiresAt,
		GeneratedAt: i.now(),
	}), nil
}

// rollback removes assets uploaded before the call failed. Best effort; the
// objects are orphaned if this fails too.
func (i *Ingestor) rollback(ctx context.Context, tracker *uploadTracker) {
	publicIDs, keys := tracker.snapshot()
	if len(publicIDs) == 0 && len(keys) == 0 {
		return
	}

	// The request context may already be cancelled.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, publicID := range publicIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := i.images.Destroy(cleanupCtx, publicID); err != nil {
				i.logg.Warn(cleanupCtx, "orphaned image left behind after failed ingestion")
			}
		}()
	}
	for _, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := i.videos.Delete(cleanupCtx, key); err != nil {
				i.logg.Warn(i.logg.WithObjectKey(cleanupCtx, key), "orphaned video left behind after failed ingestion")
			}
		}()
	}
	wg.Wait()
}

// uploadTracker records which assets made it to the backends so a failed
// call can unwind them.
type uploadTracker struct {
	mu        sync.Mutex
	publicIDs []string
	keys      []string
}

func newUploadTracker() *uploadTracker {
	return &uploadTracker{}
}

func (t *uploadTracker) addImage(publicID string) {
	if publicID == "" {
		return
	}
	t.mu.Lock()
	t.publicIDs = append(t.publicIDs, publicID)
	t.mu.Unlock()
}

func (t *uploadTracker) addVideo(key string) {
	t.mu.Lock()
	t.keys = append(t.keys, key)
	t.mu.Unlock()
}

func (t *uploadTracker) snapshot() (publicIDs, keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.publicIDs...), append([]string(nil), t.keys...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
