package validators

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

const productPart = "product"

// ProductPayload is the JSON part of a multipart product submission.
type ProductPayload struct {
	Name        string           `json:"name" validate:"required"`
	Description *string          `json:"description"`
	Category    string           `json:"category" validate:"required"`
	Subcategory string           `json:"subcategory"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int              `json:"stock" validate:"min=0"`
	Bestseller  *bool            `json:"bestseller"`
	Size        string           `json:"size"`
	Details     []string         `json:"details"`
	FAQs        []FAQPayload     `json:"faqs" validate:"omitempty,dive"`
	IsActive    *bool            `json:"isActive"`
	Variants    []VariantPayload `json:"variants" validate:"required,min=1,dive"`
}

// UpdateProductPayload carries optional field changes. Variants may be
// omitted entirely to leave stored records untouched.
type UpdateProductPayload struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Subcategory *string          `json:"subcategory"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,min=0"`
	Bestseller  *bool            `json:"bestseller"`
	Size        *string          `json:"size"`
	Details     []string         `json:"details"`
	FAQs        []FAQPayload     `json:"faqs" validate:"omitempty,dive"`
	IsActive    *bool            `json:"isActive"`
	Variants    []VariantPayload `json:"variants" validate:"omitempty,dive"`
}

type VariantPayload struct {
	Color string `json:"color" validate:"required"`
	Stock *int   `json:"stock" validate:"omitempty,min=0"`
}

type FAQPayload struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

// ParseProductForm decodes a multipart product submission: one JSON part
// named "product" plus file parts named image_<index> and video_<index>,
// where index refers to the variant's position in the JSON payload.
func ParseProductForm(r *http.Request, maxUploadMB int) (*ProductPayload, []media.VariantInput, error) {
	payload := &ProductPayload{}
	form, err := parseForm(r, maxUploadMB, payload)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateStruct(payload); err != nil {
		return nil, nil, err
	}
	inputs := buildVariantInputs(form, payload.Variants, payload.Stock)
	return payload, inputs, nil
}

// ParseUpdateProductForm is ParseProductForm for the update shape.
func ParseUpdateProductForm(r *http.Request, maxUploadMB int) (*UpdateProductPayload, []media.VariantInput, error) {
	payload := &UpdateProductPayload{}
	form, err := parseForm(r, maxUploadMB, payload)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateStruct(payload); err != nil {
		return nil, nil, err
	}
	fallbackStock := 0
	if payload.Stock != nil {
		fallbackStock = *payload.Stock
	}
	inputs := buildVariantInputs(form, payload.Variants, fallbackStock)
	return payload, inputs, nil
}

// FAQInputs converts validated FAQ payloads to the storage shape.
func FAQInputs(faqs []FAQPayload) []types.FAQ {
	if len(faqs) == 0 {
		return nil
	}
	out := make([]types.FAQ, 0, len(faqs))
	for _, faq := range faqs {
		out = append(out, types.FAQ{Question: faq.Question, Answer: faq.Answer})
	}
	return out
}

func parseForm(r *http.Request, maxUploadMB int, dest any) (*multipart.Form, error) {
	if maxUploadMB <= 0 {
		maxUploadMB = 200
	}
	if err := r.ParseMultipartForm(int64(maxUploadMB) << 20); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart request")
	}

	raw := r.FormValue(productPart)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product part is required")
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product part").WithDetails(map[string]any{"error": err.Error()})
	}
	return r.MultipartForm, nil
}

// buildVariantInputs pairs each variant payload with its file parts. A
// variant without its own stock value inherits the item-level stock.
func buildVariantInputs(form *multipart.Form, variants []VariantPayload, fallbackStock int) []media.VariantInput {
	inputs := make([]media.VariantInput, 0, len(variants))
	for idx, variant := range variants {
		stock := fallbackStock
		if variant.Stock != nil {
			stock = *variant.Stock
		}
		input := media.VariantInput{
			Color: variant.Color,
			Stock: stock,
		}
		if form != nil {
			input.Images = fileInputs(form.File[fmt.Sprintf("image_%d", idx)])
			input.Videos = fileInputs(form.File[fmt.Sprintf("video_%d", idx)])
		}
		inputs = append(inputs, input)
	}
	return inputs
}

func fileInputs(headers []*multipart.FileHeader) []media.FileInput {
	if len(headers) == 0 {
		return nil
	}
	inputs := make([]media.FileInput, 0, len(headers))
	for _, header := range headers {
		inputs = append(inputs, media.FileInput{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}
	return inputs
}
