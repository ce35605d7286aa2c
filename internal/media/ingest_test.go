package media

import (
	"context"
	"strings"
	"testing"

	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

func TestIngestBuildsRecordsPerVariant(t *testing.T) {
	t.Parallel()

	images := &stubImageBackend{}
	videos := &stubVideoStore{}
	ing := newTestIngestor(images, videos)

	bag := &readerBag{}
	records, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "Red", Images: []FileInput{fileInput("mug-red.jpg", bag)}, Stock: 5},
		{Color: "Blue", Videos: []FileInput{fileInput("mug blue.mp4", bag)}, Stock: 2},
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	red := records[0]
	if red.Color != "red" {
		t.Fatalf("expected normalized color red, got %q", red.Color)
	}
	if len(red.Images) != 1 || !strings.Contains(red.Images[0], "mug-red.jpg") {
		t.Fatalf("unexpected image list: %v", red.Images)
	}
	if len(red.Videos) != 0 {
		t.Fatalf("expected no videos for red, got %d", len(red.Videos))
	}
	if red.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", red.Stock)
	}

	blue := records[1]
	if blue.Color != "blue" {
		t.Fatalf("expected normalized color blue, got %q", blue.Color)
	}
	if len(blue.Images) != 0 {
		t.Fatalf("expected no images for blue, got %v", blue.Images)
	}
	if len(blue.Videos) != 1 {
		t.Fatalf("expected one video for blue, got %d", len(blue.Videos))
	}
	structured, ok := blue.Videos[0].Structured()
	if !ok {
		t.Fatal("expected structured video ref")
	}
	if structured.Key == "" || structured.SignedURL == "" || structured.ExpiresAt == nil {
		t.Fatalf("incomplete structured ref: %+v", structured)
	}
	if !strings.Contains(structured.Key, "mug-blue.mp4") {
		t.Fatalf("expected sanitized filename in key, got %q", structured.Key)
	}

	if !bag.allClosed() {
		t.Fatal("expected all payload readers to be closed")
	}
}

func TestIngestValidationFailsBeforeAnyUpload(t *testing.T) {
	t.Parallel()

	images := &stubImageBackend{}
	videos := &stubVideoStore{}
	ing := newTestIngestor(images, videos)

	bag := &readerBag{}
	_, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "Red", Images: []FileInput{fileInput("a.jpg", bag)}},
		{Color: "Green"},
		{Color: "Blue", Videos: []FileInput{fileInput("b.mp4", bag)}},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	if !strings.Contains(err.Error(), "green") {
		t.Fatalf("expected error to name the offending color, got %q", err.Error())
	}
	if images.uploadCount() != 0 || videos.putCount() != 0 {
		t.Fatalf("expected zero uploads, got images=%d videos=%d", images.uploadCount(), videos.putCount())
	}
	if bag.opened() != 0 {
		t.Fatalf("expected no payloads opened, got %d", bag.opened())
	}
}

func TestIngestRejectsDuplicateColors(t *testing.T) {
	t.Parallel()

	ing := newTestIngestor(&stubImageBackend{}, &stubVideoStore{})
	_, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "Red", Images: []FileInput{fileInput("a.jpg", nil)}},
		{Color: " red ", Images: []FileInput{fileInput("b.jpg", nil)}},
	})
	if err == nil {
		t.Fatal("expected duplicate color error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestIngestRetriesImageUploads(t *testing.T) {
	t.Parallel()

	images := &stubImageBackend{failures: map[string]int{"flaky.jpg": 2}}
	ing := newTestIngestor(images, &stubVideoStore{})

	records, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "red", Images: []FileInput{fileInput("flaky.jpg", nil)}},
	})
	if err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if images.uploadCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", images.uploadCount())
	}
	if len(records[0].Images) != 1 {
		t.Fatalf("expected one uploaded image, got %v", records[0].Images)
	}
}

func TestIngestAbortsAfterRetryExhaustion(t *testing.T) {
	t.Parallel()

	images := &stubImageBackend{failures: map[string]int{"second.jpg": 10}}
	videos := &stubVideoStore{}
	ing := newTestIngestor(images, videos)

	bag := &readerBag{}
	_, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "red", Images: []FileInput{fileInput("first.jpg", bag), fileInput("second.jpg", bag)}},
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpload {
		t.Fatalf("expected upload code, got %v", err)
	}
	if !strings.Contains(err.Error(), "red") {
		t.Fatalf("expected failing variant color in error, got %q", err.Error())
	}
	if !bag.allClosed() {
		t.Fatal("expected payload readers closed on the failure path")
	}
	// The first image made it up before the second failed; rollback should
	// have destroyed it.
	images.mu.Lock()
	destroys := append([]string(nil), images.destroys...)
	images.mu.Unlock()
	if len(destroys) != 1 || !strings.Contains(destroys[0], "first.jpg") {
		t.Fatalf("expected rollback to destroy first.jpg, got %v", destroys)
	}
}

func TestIngestVideoNotUploadedWithoutSignedURL(t *testing.T) {
	t.Parallel()

	videos := &stubVideoStore{signErr: context.DeadlineExceeded}
	ing := newTestIngestor(&stubImageBackend{}, videos)

	_, err := ing.Ingest(context.Background(), []VariantInput{
		{Color: "blue", Videos: []FileInput{fileInput("clip.mp4", nil)}},
	})
	if err == nil {
		t.Fatal("expected error when signing fails during ingestion")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUpload {
		t.Fatalf("expected upload code, got %v", err)
	}
	// The stored object is rolled back so no unreachable video lingers.
	if deleted := videos.deletedKeys(); len(deleted) != 1 {
		t.Fatalf("expected rollback delete for the stored object, got %v", deleted)
	}
}

func TestReingestCarriesExistingMediaForward(t *testing.T) {
	t.Parallel()

	existingVideo := types.NewStructuredVideoRef(types.StructuredVideoRef{Key: "old-key"})
	existing := types.VariantMediaList{
		{Color: "red", Images: []string{"https://cdn.example.com/old.jpg"}, Videos: []types.VideoRef{existingVideo}, Stock: 9},
		{Color: "blue", Images: []string{"https://cdn.example.com/blue.jpg"}, Stock: 4},
	}

	ing := newTestIngestor(&stubImageBackend{}, &stubVideoStore{})
	records, err := ing.Reingest(context.Background(), existing, []VariantInput{
		{Color: "Red", Images: []FileInput{fileInput("new.jpg", nil)}, Stock: 7},
		{Color: "Blue", Stock: 4},
	})
	if err != nil {
		t.Fatalf("Reingest returned error: %v", err)
	}

	red := records[0]
	if len(red.Images) != 1 || !strings.Contains(red.Images[0], "new.jpg") {
		t.Fatalf("expected new image to replace old list, got %v", red.Images)
	}
	if len(red.Videos) != 1 || !red.Videos[0].Equal(existingVideo) {
		t.Fatalf("expected existing video carried forward, got %v", red.Videos)
	}
	if red.Stock != 7 {
		t.Fatalf("expected stock replaced with 7, got %d", red.Stock)
	}

	blue := records[1]
	if len(blue.Images) != 1 || blue.Images[0] != "https://cdn.example.com/blue.jpg" {
		t.Fatalf("expected existing image carried forward, got %v", blue.Images)
	}
}

func TestReingestRequiresMediaSomewhere(t *testing.T) {
	t.Parallel()

	ing := newTestIngestor(&stubImageBackend{}, &stubVideoStore{})
	_, err := ing.Reingest(context.Background(), types.VariantMediaList{}, []VariantInput{
		{Color: "green"},
	})
	if err == nil {
		t.Fatal("expected validation error for variant with no media anywhere")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}
