package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

type createOrderRequest struct {
	Email           string     `json:"email"`
	ShippingAddress addressDTO `json:"shippingAddress"`
	BillingAddress  addressDTO `json:"billingAddress"`
	DeliveryMethod  string     `json:"deliveryMethod"`
	Notes           string     `json:"notes,omitempty"`
	SuccessURL      string     `json:"successUrl,omitempty"`
	CancelURL       string     `json:"cancelUrl,omitempty"`
}

type retrySessionRequest struct {
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

type checkoutResponse struct {
	Order          orderDTO    `json:"order"`
	PaymentSession *sessionDTO `json:"paymentSession,omitempty"`
	// SessionError заполняется в частичном исходе: заказ создан, но
	// платёжную сессию создать не удалось. Заказ остаётся Pending,
	// сессию можно пересоздать отдельным запросом.
	SessionError string `json:"sessionError,omitempty"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", domain.ErrInvalidAddress))
		return
	}

	result, err := s.checkout.CreateOrder(checkout.Request{
		SiteID:          rc.SiteID,
		Identity:        rc.Identity,
		BuyerEmail:      req.Email,
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
		DeliveryMethod:  domain.DeliveryMethod(req.DeliveryMethod),
		Notes:           req.Notes,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
	})
	if err != nil {
		if result.Order.ID == "" {
			writeError(w, err)
			return
		}
		// Частичный исход: заказ существует, сессии нет.
		s.logger.WithError(err).WithField("order_id", result.Order.ID).Warn("order created without payment session")
		writeJSON(w, statusFor(err), checkoutResponse{
			Order:        toOrderDTO(result.Order),
			SessionError: kindFor(err),
		})
		return
	}

	session := toSessionDTO(result.Session)
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Order:          toOrderDTO(result.Order),
		PaymentSession: &session,
	})
}

func (s *Server) handleRetrySession(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	var req retrySessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := s.checkout.RetrySession(
		r.PathValue("orderId"), rc.Identity.UserID, rc.Email, req.SuccessURL, req.CancelURL,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	session := toSessionDTO(result.Session)
	writeJSON(w, http.StatusOK, checkoutResponse{
		Order:          toOrderDTO(result.Order),
		PaymentSession: &session,
	})
}
