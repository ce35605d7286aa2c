package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a JSONB column holding an ordered list of free-text entries,
// used for product detail bullet points.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode string list: %w", err)
	}
	return string(data), nil
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported string list column type %T", value)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

func (StringList) GormDataType() string {
	return "jsonb"
}

// FAQ is one buyer question and its answer.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQList is the JSONB column holding a product's FAQs.
type FAQList []FAQ

func (l FAQList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode faqs: %w", err)
	}
	return string(data), nil
}

func (l *FAQList) Scan(value any) error {
	if value == nil {
		*l = FAQList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported faqs column type %T", value)
	}
	if len(data) == 0 {
		*l = FAQList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

func (FAQList) GormDataType() string {
	return "jsonb"
}
