package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testMediaConfig() config.MediaConfig {
	return config.MediaConfig{UploadRetries: 3, UploadRetryDelay: time.Millisecond}
}

func newTestIngestor(images ImageBackend, videos VideoStore) *Ingestor {
	ing := NewIngestor(images, videos, testMediaConfig(), config.SignTTLCap, testLogger(), (*metrics.MediaMetrics)(nil))
	ing.sleep = func(context.Context, time.Duration) error { return nil }
	return ing
}

// stubImageBackend counts calls and fails the first failures attempts of
// each upload when set.
type stubImageBackend struct {
	mu        sync.Mutex
	uploads   int
	destroys  []string
	failures  map[string]int
	uploadErr error
}

func (s *stubImageBackend) Upload(_ context.Context, fileName string, body io.Reader) (imagecdn.UploadResult, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return imagecdn.UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failures[fileName] > 0 {
		s.failures[fileName]--
		return imagecdn.UploadResult{}, fmt.Errorf("upload of %s refused", fileName)
	}
	if s.uploadErr != nil {
		return imagecdn.UploadResult{}, s.uploadErr
	}
	return imagecdn.UploadResult{
		SecureURL: "https://res.cloudinary.com/demo/image/upload/v1700000000/products/" + fileName,
		PublicID:  "products/" + fileName,
	}, nil
}

func (s *stubImageBackend) Destroy(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroys = append(s.destroys, publicID)
	return nil
}

func (s *stubImageBackend) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// stubVideoStore records puts, signs and deletes. signErrFor and
// deleteErrFor fail individual keys.
type stubVideoStore struct {
	mu           sync.Mutex
	puts         []string
	signs        []string
	deletes      []string
	putErr       error
	signErr      error
	signErrFor   map[string]error
	deleteErrFor map[string]error
	signTTL      time.Duration
}

func (s *stubVideoStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	if body != nil {
		if _, err := io.Copy(io.Discard, body); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, key)
	return nil
}

func (s *stubVideoStore) SignGetURL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.signErrFor[key]; err != nil {
		return "", time.Time{}, err
	}
	if s.signErr != nil {
		return "", time.Time{}, s.signErr
	}
	s.signs = append(s.signs, key)
	s.signTTL = ttl
	expiry := time.Now().Add(ttl)
	return "https://bucket.s3.example.com/" + key + "?X-Amz-Signature=abc", expiry, nil
}

func (s *stubVideoStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if err := s.deleteErrFor[key]; err != nil {
		return err
	}
	return nil
}

func (s *stubVideoStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *stubVideoStore) signCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signs)
}

func (s *stubVideoStore) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// trackedReader reports whether the pipeline closed it.
type trackedReader struct {
	*bytes.Reader
	mu     sync.Mutex
	closed bool
}

func (t *trackedReader) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *trackedReader) wasClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// readerBag collects every reader the pipeline opened so tests can assert
// they were all closed. Opens may happen concurrently across variants.
type readerBag struct {
	mu      sync.Mutex
	readers []*trackedReader
}

func (b *readerBag) add(r *trackedReader) {
	b.mu.Lock()
	b.readers = append(b.readers, r)
	b.mu.Unlock()
}

func (b *readerBag) allClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.readers {
		if !r.wasClosed() {
			return false
		}
	}
	return true
}

func (b *readerBag) opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readers)
}

func fileInput(name string, bag *readerBag) FileInput {
	return FileInput{
		FileName:    name,
		ContentType: "application/octet-stream",
		Open: func() (io.ReadCloser, error) {
			r := &trackedReader{Reader: bytes.NewReader([]byte("payload"))}
			if bag != nil {
				bag.add(r)
			}
			return r, nil
		},
	}
}
