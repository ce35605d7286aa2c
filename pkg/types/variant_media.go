package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// VariantMediaRecord holds the media and stock for one color variant of a
// catalog item. A valid record carries at least one image or one video.
type VariantMediaRecord struct {
	Color  string     `json:"color"`
	Images []string   `json:"images"`
	Videos []VideoRef `json:"videos"`
	Stock  int        `json:"stock"`
}

// HasMedia reports whether the record satisfies the at-least-one-medium
// invariant.
func (v VariantMediaRecord) HasMedia() bool {
	return len(v.Images) > 0 || len(v.Videos) > 0
}

// NormalizeColor trims and lowercases a color label; normalized colors are
// the identity key for variants within one item.
func NormalizeColor(color string) string {
	return strings.ToLower(strings.TrimSpace(color))
}

// VariantMediaList is the JSONB column type persisted on products.
type VariantMediaList []VariantMediaRecord

// FindByColor returns the record matching the normalized color, if any.
func (l VariantMediaList) FindByColor(color string) (VariantMediaRecord, bool) {
	want := NormalizeColor(color)
	for _, record := range l {
		if NormalizeColor(record.Color) == want {
			return record, true
		}
	}
	return VariantMediaRecord{}, false
}

func (l VariantMediaList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode variants: %w", err)
	}
	return string(data), nil
}

func (l *VariantMediaList) Scan(value any) error {
	if value == nil {
		*l = VariantMediaList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported variants column type %T", value)
	}
	if len(data) == 0 {
		*l = VariantMediaList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

func (VariantMediaList) GormDataType() string {
	return "jsonb"
}
