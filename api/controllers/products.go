package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pleasantpearl/pleasantpearl-backend/api/responses"
	"github.com/pleasantpearl/pleasantpearl-backend/api/validators"
	"github.com/pleasantpearl/pleasantpearl-backend/internal/catalog"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
)

// CreateProduct handles multipart product creation with per-variant media.
func CreateProduct(svc catalog.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		payload, variants, err := validators.ParseProductForm(r, maxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.CreateProductInput{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Subcategory: payload.Subcategory,
			Price:       payload.Price,
			Stock:       payload.Stock,
			Size:        payload.Size,
			Details:     payload.Details,
			FAQs:        validators.FAQInputs(payload.FAQs),
			IsActive:    true,
			Variants:    variants,
		}
		if payload.Bestseller != nil {
			input.Bestseller = *payload.Bestseller
		}
		if payload.IsActive != nil {
			input.IsActive = *payload.IsActive
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// UpdateProduct applies field and media changes to an existing product.
func UpdateProduct(svc catalog.Service, maxUploadMB int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, variants, err := validators.ParseUpdateProductForm(r, maxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateProductInput{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Subcategory: payload.Subcategory,
			Price:       payload.Price,
			Stock:       payload.Stock,
			Bestseller:  payload.Bestseller,
			Size:        payload.Size,
			Details:     payload.Details,
			FAQs:        validators.FAQInputs(payload.FAQs),
			IsActive:    payload.IsActive,
		}
		if len(payload.Variants) > 0 {
			input.Variants = variants
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// GetProduct returns one product with resolved media URLs.
func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ListProducts returns a page of active products with resolved media URLs.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := catalog.ListProductsInput{
			Category: r.URL.Query().Get("category"),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				input.Limit = v
			}
		}
		if raw := r.URL.Query().Get("offset"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				input.Offset = v
			}
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// DeleteProduct removes a product after attempting cleanup of its assets.
func DeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

type decrementStockRequest struct {
	Color    string `json:"color" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

// DecrementStock reduces one variant's stock, clamping at zero.
func DecrementStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload decrementStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.DecrementStock(r.Context(), productID, payload.Color, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
