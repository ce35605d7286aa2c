package catalog

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// newTestDB opens an isolated in-memory sqlite database with the catalog
// schema applied.
func newTestDB(t *testing.T) *db.Client {
	t.Helper()

	cfg := config.DBConfig{
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		Driver: "sqlite",
	}
	client, err := db.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	schema := []string{
		`CREATE TABLE products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT NOT NULL,
			subcategory TEXT,
			price NUMERIC NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0,
			bestseller BOOLEAN NOT NULL DEFAULT 0,
			size TEXT,
			details TEXT NOT NULL DEFAULT '[]',
			faqs TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			variants TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	}
	for _, stmt := range schema {
		if err := client.Exec(context.Background(), stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return client
}

func newTestService(t *testing.T, client *db.Client, ing ingestor, res resolver, cln cleaner) Service {
	t.Helper()

	logg := testLogger()
	repo := NewRepository(client.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	svc, err := NewService(repo, client, outboxSvc, ing, res, cln, logg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func mustCreateTestProduct(t *testing.T, client *db.Client, variants types.VariantMediaList) *models.Product {
	t.Helper()

	row := &models.Product{
		ID:       uuid.New(),
		Name:     "Test Mug",
		Category: "mugs",
		Price:    decimal.NewFromInt(12),
		IsActive: true,
		Variants: variants,
	}
	if err := client.DB().Create(row).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return row
}

// stubIngestor returns canned variant lists and records calls.
type stubIngestor struct {
	ingestCalls   int
	reingestCalls int
	lastExisting  types.VariantMediaList
	result        types.VariantMediaList
	err           error
}

func (s *stubIngestor) Ingest(_ context.Context, _ []media.VariantInput) (types.VariantMediaList, error) {
	s.ingestCalls++
	return s.result, s.err
}

func (s *stubIngestor) Reingest(_ context.Context, existing types.VariantMediaList, _ []media.VariantInput) (types.VariantMediaList, error) {
	s.reingestCalls++
	s.lastExisting = existing
	return s.result, s.err
}

// stubResolver optionally rewrites every structured ref's URL.
type stubResolver struct {
	calls   int
	rewrite string
}

func (s *stubResolver) ResolveVariants(_ context.Context, variants types.VariantMediaList) (types.VariantMediaList, bool) {
	s.calls++
	if s.rewrite == "" {
		return variants, false
	}
	resolved := make(types.VariantMediaList, len(variants))
	copy(resolved, variants)
	changed := false
	for vi := range resolved {
		videos := append([]types.VideoRef(nil), resolved[vi].Videos...)
		for qi, video := range videos {
			structured, ok := video.Structured()
			if !ok {
				continue
			}
			structured.SignedURL = s.rewrite
			videos[qi] = types.NewStructuredVideoRef(structured)
			changed = true
		}
		resolved[vi].Videos = videos
	}
	return resolved, changed
}

// stubCleaner records the variant sets it was asked to clean.
type stubCleaner struct {
	calls  int
	seen   []types.VariantMediaList
	report media.CleanupReport
}

func (s *stubCleaner) Cleanup(_ context.Context, variants types.VariantMediaList) media.CleanupReport {
	s.calls++
	s.seen = append(s.seen, variants)
	return s.report
}
