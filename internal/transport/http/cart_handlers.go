package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int32  `json:"quantity"`
}

type setQuantityRequest struct {
	VariantID string `json:"variantId,omitempty"`
	Quantity  int32  `json:"quantity"`
}

type removeItemRequest struct {
	VariantID string `json:"variantId,omitempty"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	crt, err := s.carts.Get(rc.SiteID, rc.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(crt))
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", domain.ErrQuantityInvalid))
		return
	}
	if req.ProductID == "" {
		writeError(w, domain.ErrProductNotFound)
		return
	}

	crt, err := s.carts.AddItem(rc.SiteID, rc.Identity, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(crt))
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", domain.ErrQuantityInvalid))
		return
	}

	crt, err := s.carts.SetQuantity(rc.SiteID, rc.Identity, r.PathValue("productId"), req.VariantID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(crt))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	// Тело опционально: variantId может отсутствовать.
	var req removeItemRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	crt, err := s.carts.RemoveItem(rc.SiteID, rc.Identity, r.PathValue("productId"), req.VariantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(crt))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.carts.Clear(rc.SiteID, rc.Identity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(domain.Cart{Items: []domain.CartItem{}}))
}
