package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

func newTestResolver(videos VideoStore) *Resolver {
	cfg := config.ObjectStoreConfig{
		MaxSignTTL:    config.SignTTLCap,
		RefreshMargin: 24 * time.Hour,
	}
	return NewResolver(videos, cfg, 4, testLogger(), (*metrics.MediaMetrics)(nil))
}

func structuredRef(key string, expiresIn time.Duration, now time.Time) types.VideoRef {
	expiry := now.Add(expiresIn)
	return types.NewStructuredVideoRef(types.StructuredVideoRef{
		Key:         key,
		SignedURL:   "https://bucket.s3.example.com/" + key + "?X-Amz-Signature=old",
		ExpiresAt:   &expiry,
		GeneratedAt: now.Add(-time.Hour),
	})
}

func TestResolveFreshRefIsIdempotent(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{}
	r := newTestResolver(videos)
	now := time.Now()
	r.now = func() time.Time { return now }

	ref := structuredRef("key-1", 100*time.Hour, now)
	first, changed := r.Resolve(context.Background(), ref)
	if changed {
		t.Fatal("fresh ref should not be refreshed")
	}
	second, changed := r.Resolve(context.Background(), first)
	if changed {
		t.Fatal("second resolve should also report no refresh")
	}
	if first.AccessURL() != second.AccessURL() {
		t.Fatalf("urls differ across resolves: %q vs %q", first.AccessURL(), second.AccessURL())
	}
	if videos.signCount() != 0 {
		t.Fatalf("expected no signing calls, got %d", videos.signCount())
	}
}

func TestResolveExpiryBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		expiresIn time.Duration
		refresh   bool
	}{
		{name: "inside margin", expiresIn: 23 * time.Hour, refresh: true},
		{name: "outside margin", expiresIn: 25 * time.Hour, refresh: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			videos := &stubVideoStore{}
			r := newTestResolver(videos)
			now := time.Now()
			r.now = func() time.Time { return now }

			_, changed := r.Resolve(context.Background(), structuredRef("key-1", tc.expiresIn, now))
			if changed != tc.refresh {
				t.Fatalf("expected refresh=%v for expiry in %s, got %v", tc.refresh, tc.expiresIn, changed)
			}
		})
	}
}

func TestResolveMigratesLegacyKey(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{}
	r := newTestResolver(videos)

	fresh, changed := r.Resolve(context.Background(), types.LegacyVideoRef("1688000000000-old-clip.mp4"))
	if !changed {
		t.Fatal("expected legacy key to be migrated")
	}
	structured, ok := fresh.Structured()
	if !ok {
		t.Fatal("expected structured ref after migration")
	}
	if structured.Key != "1688000000000-old-clip.mp4" {
		t.Fatalf("migration changed the key: %q", structured.Key)
	}
	if structured.SignedURL == "" || structured.ExpiresAt == nil {
		t.Fatalf("migration produced incomplete ref: %+v", structured)
	}

	// Once structured, subsequent resolves only update structured fields.
	again, changed := r.Resolve(context.Background(), fresh)
	if changed {
		t.Fatal("freshly migrated ref should not need another refresh")
	}
	if again.IsLegacy() {
		t.Fatal("migrated ref reverted to legacy form")
	}
}

func TestResolvePassesLegacyURLsThrough(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{}
	r := newTestResolver(videos)

	for _, raw := range []string{
		"https://res.cloudinary.com/demo/video/upload/v1/clip.mp4",
		"https://bucket.s3.example.com/clip.mp4?X-Amz-Credential=abc&X-Amz-Signature=def",
	} {
		ref := types.LegacyVideoRef(raw)
		got, changed := r.Resolve(context.Background(), ref)
		if changed {
			t.Fatalf("legacy url %q should pass through unchanged", raw)
		}
		if got.AccessURL() != raw {
			t.Fatalf("expected %q back, got %q", raw, got.AccessURL())
		}
	}
	if videos.signCount() != 0 {
		t.Fatalf("expected no signing calls for url passthrough, got %d", videos.signCount())
	}
}

func TestResolveCountsLegacyPassthroughKinds(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	videos := &stubVideoStore{}
	cfg := config.ObjectStoreConfig{
		MaxSignTTL:    config.SignTTLCap,
		RefreshMargin: 24 * time.Hour,
	}
	r := NewResolver(videos, cfg, 4, testLogger(), metrics.NewMediaMetrics(reg))

	for _, raw := range []string{
		"https://res.cloudinary.com/demo/video/upload/v1/clip.mp4",
		"https://bucket.s3.example.com/clip.mp4?X-Amz-Signature=def",
		"https://bucket.s3.example.com/other.mp4?X-Amz-Credential=abc",
	} {
		if _, changed := r.Resolve(context.Background(), types.LegacyVideoRef(raw)); changed {
			t.Fatalf("legacy url %q should pass through unchanged", raw)
		}
	}
	if videos.signCount() != 0 {
		t.Fatalf("expected no signing calls, got %d", videos.signCount())
	}

	counts := map[string]float64{}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "media_legacy_passthrough" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "kind" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["presigned"] != 2 {
		t.Fatalf("expected 2 presigned passthroughs, got %v", counts["presigned"])
	}
	if counts["cdn"] != 1 {
		t.Fatalf("expected 1 cdn passthrough, got %v", counts["cdn"])
	}
}

func TestResolveServesStaleOnSigningFailure(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{signErr: errors.New("store unavailable")}
	r := newTestResolver(videos)
	now := time.Now()
	r.now = func() time.Time { return now }

	ref := structuredRef("key-1", time.Hour, now)
	got, changed := r.Resolve(context.Background(), ref)
	if changed {
		t.Fatal("failed refresh must not report a change")
	}
	if got.AccessURL() == "" {
		t.Fatal("expected last known url to be served")
	}
	if !got.Equal(ref) {
		t.Fatal("expected the stale ref back unchanged")
	}
}

func TestResolveVariantsIsolatesFailures(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{signErrFor: map[string]error{"key-2": errors.New("boom")}}
	r := newTestResolver(videos)
	now := time.Now()
	r.now = func() time.Time { return now }

	variants := types.VariantMediaList{
		{Color: "red", Videos: []types.VideoRef{
			structuredRef("key-1", time.Hour, now),
			structuredRef("key-2", time.Hour, now),
		}},
		{Color: "blue", Videos: []types.VideoRef{
			structuredRef("key-3", time.Hour, now),
		}},
	}

	resolved, changed := r.ResolveVariants(context.Background(), variants)
	if !changed {
		t.Fatal("expected at least one refreshed ref")
	}

	one, _ := resolved[0].Videos[0].Structured()
	if one.ExpiresAt == nil || !one.ExpiresAt.After(now.Add(48*time.Hour)) {
		t.Fatalf("expected key-1 refreshed, expiry %v", one.ExpiresAt)
	}
	two, _ := resolved[0].Videos[1].Structured()
	if two.ExpiresAt == nil || !two.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected key-2 left stale, expiry %v", two.ExpiresAt)
	}
	three, _ := resolved[1].Videos[0].Structured()
	if three.ExpiresAt == nil || !three.ExpiresAt.After(now.Add(48*time.Hour)) {
		t.Fatalf("expected key-3 refreshed, expiry %v", three.ExpiresAt)
	}

	// Caller's records stay untouched; write-back is the caller's job.
	orig, _ := variants[0].Videos[0].Structured()
	if !orig.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatal("input variant set was mutated")
	}
}

func TestResolveVariantsNoVideos(t *testing.T) {
	t.Parallel()

	r := newTestResolver(&stubVideoStore{})
	variants := types.VariantMediaList{{Color: "red", Images: []string{"https://cdn.example.com/a.jpg"}}}
	resolved, changed := r.ResolveVariants(context.Background(), variants)
	if changed {
		t.Fatal("no videos means nothing to refresh")
	}
	if len(resolved) != 1 || resolved[0].Color != "red" {
		t.Fatalf("unexpected resolved set: %+v", resolved)
	}
}
