package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// errorResponse — единый формат ошибки API.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type addressDTO struct {
	Name       string `json:"name,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type cartItemDTO struct {
	ProductID      string `json:"productId"`
	VariantID      string `json:"variantId,omitempty"`
	Title          string `json:"title"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
}

type cartDTO struct {
	ID         string        `json:"id,omitempty"`
	Currency   string        `json:"currency,omitempty"`
	Items      []cartItemDTO `json:"items"`
	TotalMinor int64         `json:"totalMinor"`
}

type orderItemDTO struct {
	ProductID      string `json:"productId"`
	VariantID      string `json:"variantId,omitempty"`
	Title          string `json:"title"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
}

type orderDTO struct {
	ID                   string         `json:"id"`
	SiteID               string         `json:"siteId"`
	BuyerEmail           string         `json:"buyerEmail"`
	Items                []orderItemDTO `json:"items"`
	SubtotalMinor        int64          `json:"subtotalMinor"`
	ShippingMinor        int64          `json:"shippingMinor"`
	TaxMinor             int64          `json:"taxMinor"`
	TotalMinor           int64          `json:"totalMinor"`
	Currency             string         `json:"currency"`
	DeliveryMethod       string         `json:"deliveryMethod"`
	ShippingAddress      addressDTO     `json:"shippingAddress"`
	BillingAddress       addressDTO     `json:"billingAddress"`
	Status               string         `json:"status"`
	PaymentStatus        string         `json:"paymentStatus"`
	Notes                string         `json:"notes,omitempty"`
	RefundRef            string         `json:"refundRef,omitempty"`
	ManualRefundRequired bool           `json:"manualRefundRequired,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

type sessionDTO struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type timelineEventDTO struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toAddressDTO(a domain.Address) addressDTO {
	return addressDTO{
		Name:       a.Name,
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func (d addressDTO) toDomain() domain.Address {
	return domain.Address{
		Name:       d.Name,
		Street:     d.Street,
		City:       d.City,
		PostalCode: d.PostalCode,
		Country:    d.Country,
	}
}

func toCartDTO(cart domain.Cart) cartDTO {
	items := make([]cartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDTO{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          item.Title,
			Quantity:       item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return cartDTO{
		ID:         cart.ID,
		Currency:   cart.Currency,
		Items:      items,
		TotalMinor: cart.TotalMinor,
	}
}

func toOrderDTO(order domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDTO{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          item.Title,
			Quantity:       item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return orderDTO{
		ID:                   order.ID,
		SiteID:               order.SiteID,
		BuyerEmail:           order.BuyerEmail,
		Items:                items,
		SubtotalMinor:        order.SubtotalMinor,
		ShippingMinor:        order.ShippingMinor,
		TaxMinor:             order.TaxMinor,
		TotalMinor:           order.TotalMinor,
		Currency:             order.Currency,
		DeliveryMethod:       string(order.DeliveryMethod),
		ShippingAddress:      toAddressDTO(order.ShippingAddress),
		BillingAddress:       toAddressDTO(order.BillingAddress),
		Status:               string(order.Status),
		PaymentStatus:        string(order.PaymentStatus),
		Notes:                order.Notes,
		RefundRef:            order.RefundRef,
		ManualRefundRequired: order.ManualRefundRequired,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
}

func toSessionDTO(session domain.Session) sessionDTO {
	return sessionDTO{
		ID:     session.ID,
		URL:    session.URL,
		Status: string(session.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError переводит доменную ошибку в HTTP-статус и формат API.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Error: err.Error(),
		Kind:  kindFor(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuantityInvalid),
		errors.Is(err, domain.ErrDeliveryMethodInvalid),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrBuyerEmailRequired),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrSiteIDRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrRefundRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		return "gateway_not_configured"
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrRefundRejected):
		return "gateway_error"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrOrderVersionConflict):
		return "invalid_state"
	case statusFor(err) == http.StatusBadRequest:
		return "validation_error"
	default:
		return "internal_error"
	}
}
