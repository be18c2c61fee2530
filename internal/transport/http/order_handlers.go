package http

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cancellation"
)

const listOrdersLimit = 50

type orderListResponse struct {
	Orders []orderDTO `json:"orders"`
}

type orderDetailResponse struct {
	Order    orderDTO           `json:"order"`
	Timeline []timelineEventDTO `json:"timeline,omitempty"`
}

type cancelResponse struct {
	Order         orderDTO `json:"order"`
	RefundOutcome string   `json:"refundOutcome"`
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if rc.Identity.UserID == "" && rc.Email == "" {
		writeError(w, domain.ErrForbidden)
		return
	}

	buyerKey := "user:" + rc.Identity.UserID
	if rc.Identity.UserID == "" {
		buyerKey = "email:" + rc.Email
	}

	orders, err := s.orders.ListByBuyer(rc.SiteID, buyerKey, listOrdersLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]orderDTO, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderDTO(order))
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: out})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := s.orders.Get(r.PathValue("orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order.SiteID != rc.SiteID || !order.BelongsTo(rc.Identity.UserID, rc.Email) {
		// Чужой заказ не раскрывается, в том числе фактом существования.
		writeError(w, domain.ErrOrderNotFound)
		return
	}

	resp := orderDetailResponse{Order: toOrderDTO(order)}
	if s.timeline != nil {
		events, err := s.timeline.List(order.ID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to load order timeline")
		} else {
			for _, event := range events {
				resp.Timeline = append(resp.Timeline, timelineEventDTO{
					Type:     event.Type,
					Reason:   event.Reason,
					Occurred: event.Occurred,
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	rc, err := resolveContext(w, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := s.orders.Get(r.PathValue("orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order.SiteID != rc.SiteID {
		writeError(w, domain.ErrOrderNotFound)
		return
	}

	updated, outcome, err := s.cancel.Cancel(order.ID, cancellation.Requester{
		UserID: rc.Identity.UserID,
		Email:  rc.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelResponse{
		Order:         toOrderDTO(updated),
		RefundOutcome: string(outcome),
	})
}
