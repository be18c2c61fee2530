package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
)

// maxWebhookBody ограничивает размер принимаемого тела события.
const maxWebhookBody = 1 << 20

// handleWebhook принимает событие шлюза. 200 возвращается только после
// долговременного применения события (или отсечения повтора); любой
// другой статус означает для шлюза «доставить повторно».
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body", Kind: "validation_error"})
		return
	}

	if err := s.webhooks.HandleEvent(body, r.Header.Get(gateway.SignatureHeader)); err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "signature invalid", Kind: "signature_invalid"})
			return
		}
		s.logger.WithError(err).Warn("webhook processing failed, requesting redelivery")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "event not applied", Kind: "retryable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
