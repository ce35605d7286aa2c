package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/enums"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

func sampleVariants() types.VariantMediaList {
	return types.VariantMediaList{
		{
			Color:  "red",
			Images: []string{"https://res.cloudinary.com/demo/image/upload/v1/products/mug.jpg"},
			Videos: []types.VideoRef{
				types.NewStructuredVideoRef(types.StructuredVideoRef{Key: "key-1", SignedURL: "https://old.example.com/key-1"}),
			},
			Stock: 3,
		},
	}
}

func TestCreateProductPersistsRecordAndEvent(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	ing := &stubIngestor{result: sampleVariants()}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	dto, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:     "Mug",
		Category: "mugs",
		Price:    decimal.NewFromInt(15),
		IsActive: true,
		Variants: []media.VariantInput{{Color: "Red"}},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if ing.ingestCalls != 1 {
		t.Fatalf("expected one ingest call, got %d", ing.ingestCalls)
	}
	if dto.TotalStock != 3 {
		t.Fatalf("expected total stock 3, got %d", dto.TotalStock)
	}

	var row models.Product
	if err := client.DB().First(&row, "id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load persisted product: %v", err)
	}
	if len(row.Variants) != 1 || row.Variants[0].Color != "red" {
		t.Fatalf("unexpected persisted variants: %+v", row.Variants)
	}

	var event models.OutboxEvent
	if err := client.DB().First(&event, "aggregate_id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load outbox event: %v", err)
	}
	if event.EventType != enums.OutboxEventProductCreated {
		t.Fatalf("unexpected event type %q", event.EventType)
	}
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	ing := &stubIngestor{}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:     "  ",
		Category: "mugs",
		Price:    decimal.NewFromInt(1),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	if ing.ingestCalls != 0 {
		t.Fatal("validation failure must not reach the ingestion pipeline")
	}
}

func TestCreateProductIngestionFailurePropagates(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	ing := &stubIngestor{err: pkgerrors.New(pkgerrors.CodeUpload, "upload exhausted")}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:     "Mug",
		Category: "mugs",
		Price:    decimal.NewFromInt(1),
		Variants: []media.VariantInput{{Color: "Red"}},
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	var count int64
	client.DB().Model(&models.Product{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no persisted products, got %d", count)
	}
}

func TestUpdateProductReingestsAgainstStoredVariants(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	existing := sampleVariants()
	row := mustCreateTestProduct(t, client, existing)

	fresh := sampleVariants()
	fresh[0].Stock = 9
	ing := &stubIngestor{result: fresh}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	name := "Bigger Mug"
	dto, err := svc.UpdateProduct(context.Background(), row.ID, UpdateProductInput{
		Name:     &name,
		Variants: []media.VariantInput{{Color: "Red"}},
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if ing.reingestCalls != 1 {
		t.Fatalf("expected one reingest call, got %d", ing.reingestCalls)
	}
	if len(ing.lastExisting) != 1 || ing.lastExisting[0].Color != "red" {
		t.Fatalf("reingest did not receive stored variants: %+v", ing.lastExisting)
	}
	if dto.Name != "Bigger Mug" || dto.TotalStock != 9 {
		t.Fatalf("unexpected dto after update: %+v", dto)
	}
}

func TestUpdateProductWithoutVariantsKeepsRecords(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	row := mustCreateTestProduct(t, client, sampleVariants())
	ing := &stubIngestor{}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	price := decimal.NewFromInt(20)
	dto, err := svc.UpdateProduct(context.Background(), row.ID, UpdateProductInput{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if ing.reingestCalls != 0 {
		t.Fatal("no variant payloads must mean no ingestion")
	}
	if len(dto.Variants) != 1 || dto.Variants[0].Stock != 3 {
		t.Fatalf("stored variants changed: %+v", dto.Variants)
	}
}

func TestGetProductWritesBackRefreshedRefs(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	row := mustCreateTestProduct(t, client, sampleVariants())
	res := &stubResolver{rewrite: "https://fresh.example.com/key-1"}
	svc := newTestService(t, client, &stubIngestor{}, res, &stubCleaner{})

	dto, err := svc.GetProduct(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	structured, ok := dto.Variants[0].Videos[0].Structured()
	if !ok || structured.SignedURL != "https://fresh.example.com/key-1" {
		t.Fatalf("expected refreshed url in response, got %+v", dto.Variants[0].Videos[0])
	}

	var reloaded models.Product
	if err := client.DB().First(&reloaded, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	persisted, ok := reloaded.Variants[0].Videos[0].Structured()
	if !ok || persisted.SignedURL != "https://fresh.example.com/key-1" {
		t.Fatalf("expected refreshed ref persisted, got %+v", reloaded.Variants[0].Videos[0])
	}
}

func TestGetProductNotFound(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	svc := newTestService(t, client, &stubIngestor{}, &stubResolver{}, &stubCleaner{})

	_, err := svc.GetProduct(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestDeleteProductAttemptsCleanupBeforeRemoval(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	row := mustCreateTestProduct(t, client, sampleVariants())
	cln := &stubCleaner{report: media.CleanupReport{Attempted: 2, FailedKeys: []string{"key-1"}}}
	svc := newTestService(t, client, &stubIngestor{}, &stubResolver{}, cln)

	if err := svc.DeleteProduct(context.Background(), row.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if cln.calls != 1 {
		t.Fatalf("expected one cleanup call, got %d", cln.calls)
	}
	if len(cln.seen[0]) != 1 || cln.seen[0][0].Color != "red" {
		t.Fatalf("cleanup did not receive the variant set: %+v", cln.seen[0])
	}

	var count int64
	client.DB().Model(&models.Product{}).Where("id = ?", row.ID).Count(&count)
	if count != 0 {
		t.Fatal("expected product record removed")
	}

	var event models.OutboxEvent
	if err := client.DB().First(&event, "event_type = ?", enums.OutboxEventProductDeleted).Error; err != nil {
		t.Fatalf("load deletion event: %v", err)
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var payload ProductDeletedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.ObjectKeys) != 1 || payload.ObjectKeys[0] != "key-1" {
		t.Fatalf("expected failed key queued for sweep, got %v", payload.ObjectKeys)
	}
}

func TestCreateProductNormalizesSubcategory(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	ing := &stubIngestor{result: sampleVariants()}
	svc := newTestService(t, client, ing, &stubResolver{}, &stubCleaner{})

	dto, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:        "Mug",
		Category:    "mugs",
		Subcategory: "  Ceramic  ",
		Price:       decimal.NewFromInt(15),
		Stock:       7,
		Details:     []string{"dishwasher safe"},
		FAQs:        []types.FAQ{{Question: "Capacity?", Answer: "350ml"}},
		IsActive:    true,
		Variants:    []media.VariantInput{{Color: "Red"}},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if dto.Subcategory != "ceramic" {
		t.Fatalf("expected normalized subcategory, got %q", dto.Subcategory)
	}
	if len(dto.FAQs) != 1 || dto.FAQs[0].Answer != "350ml" {
		t.Fatalf("unexpected faqs: %+v", dto.FAQs)
	}
}

func TestTotalStockFallsBackToItemStock(t *testing.T) {
	t.Parallel()

	row := models.Product{Stock: 12}
	if got := row.TotalStock(); got != 12 {
		t.Fatalf("expected item-level stock without variants, got %d", got)
	}

	row.Variants = sampleVariants()
	if got := row.TotalStock(); got != 3 {
		t.Fatalf("expected variant stock to win, got %d", got)
	}
}

func TestDecrementStockClampsAtZero(t *testing.T) {
	t.Parallel()

	client := newTestDB(t)
	row := mustCreateTestProduct(t, client, sampleVariants())
	svc := newTestService(t, client, &stubIngestor{}, &stubResolver{}, &stubCleaner{})

	dto, err := svc.DecrementStock(context.Background(), row.ID, "RED", 10)
	if err != nil {
		t.Fatalf("DecrementStock: %v", err)
	}
	if dto.Variants[0].Stock != 0 {
		t.Fatalf("expected stock clamped at 0, got %d", dto.Variants[0].Stock)
	}

	_, err = svc.DecrementStock(context.Background(), row.ID, "chartreuse", 1)
	if err == nil {
		t.Fatal("expected not found for unknown color")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}
