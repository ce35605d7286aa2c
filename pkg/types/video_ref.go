package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StructuredVideoRef is the cache-bearing form of a stored video reference.
// Key is the only durable identity; SignedURL and ExpiresAt are disposable
// derived state and may be dropped without losing the asset.
type StructuredVideoRef struct {
	Key         string     `json:"key"`
	SignedURL   string     `json:"signedUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// VideoRef is a tagged union over the two on-disk representations of a video
// reference: a legacy raw string (bare object key or historical CDN URL) or
// the structured cache-bearing form. Exactly one side is set.
type VideoRef struct {
	legacy     string
	structured *StructuredVideoRef
}

// LegacyVideoRef wraps a raw legacy value (bare key or full URL).
func LegacyVideoRef(value string) VideoRef {
	return VideoRef{legacy: value}
}

// NewStructuredVideoRef wraps a structured reference.
func NewStructuredVideoRef(ref StructuredVideoRef) VideoRef {
	r := ref
	return VideoRef{structured: &r}
}

func (r VideoRef) IsZero() bool {
	return r.legacy == "" && r.structured == nil
}

func (r VideoRef) IsLegacy() bool {
	return r.structured == nil && r.legacy != ""
}

// LegacyValue returns the raw legacy string, or "" for structured refs.
func (r VideoRef) LegacyValue() string {
	if r.structured != nil {
		return ""
	}
	return r.legacy
}

// LegacyIsURL reports whether the legacy value is a full URL rather than a
// bare object key.
func (r VideoRef) LegacyIsURL() bool {
	if !r.IsLegacy() {
		return false
	}
	return strings.HasPrefix(r.legacy, "http://") || strings.HasPrefix(r.legacy, "https://")
}

// LegacyIsPresigned reports whether the legacy value already carries S3
// signature query parameters. Its object key cannot be recovered from the
// URL, so it is never migrated.
func (r VideoRef) LegacyIsPresigned() bool {
	if !r.IsLegacy() {
		return false
	}
	return strings.Contains(r.legacy, "X-Amz-Signature") || strings.Contains(r.legacy, "X-Amz-Credential")
}

// Structured returns the structured form when present.
func (r VideoRef) Structured() (StructuredVideoRef, bool) {
	if r.structured == nil {
		return StructuredVideoRef{}, false
	}
	return *r.structured, true
}

// ObjectKey returns the durable object-store key this reference points at:
// the structured key, or the legacy value when it is a bare key. Legacy URLs
// have no recoverable key and yield "".
func (r VideoRef) ObjectKey() string {
	if r.structured != nil {
		return r.structured.Key
	}
	if r.IsLegacy() && !r.LegacyIsURL() {
		return r.legacy
	}
	return ""
}

// AccessURL returns the last known URL for the reference, which may be
// expired for structured refs. Bare legacy keys have none.
func (r VideoRef) AccessURL() string {
	if r.structured != nil {
		return r.structured.SignedURL
	}
	if r.LegacyIsURL() {
		return r.legacy
	}
	return ""
}

func (r VideoRef) Equal(other VideoRef) bool {
	if r.structured == nil || other.structured == nil {
		return r.structured == nil && other.structured == nil && r.legacy == other.legacy
	}
	a, b := *r.structured, *other.structured
	if a.Key != b.Key || a.SignedURL != b.SignedURL || !a.GeneratedAt.Equal(b.GeneratedAt) {
		return false
	}
	if (a.ExpiresAt == nil) != (b.ExpiresAt == nil) {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.Equal(*b.ExpiresAt)
}

// MarshalJSON keeps legacy refs as plain JSON strings so historical records
// round-trip untouched; structured refs encode as objects.
func (r VideoRef) MarshalJSON() ([]byte, error) {
	if r.structured != nil {
		return json.Marshal(r.structured)
	}
	return json.Marshal(r.legacy)
}

func (r *VideoRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*r = VideoRef{}
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return fmt.Errorf("decode legacy video ref: %w", err)
		}
		*r = VideoRef{legacy: value}
		return nil
	}
	var structured StructuredVideoRef
	if err := json.Unmarshal(data, &structured); err != nil {
		return fmt.Errorf("decode structured video ref: %w", err)
	}
	if structured.Key == "" {
		return fmt.Errorf("structured video ref missing key")
	}
	*r = VideoRef{structured: &structured}
	return nil
}
