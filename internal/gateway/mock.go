package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локальной разработки.
type MockGateway struct {
	CreateErr  error
	GetErr     error
	ListErr    error
	RefundErr  error
	RefundResp domain.Refund

	// Sessions возвращаются из GetSession/ListSessions по ID.
	Sessions []domain.Session
	// PageSizeLimit имитирует серверный потолок размера страницы.
	PageSizeLimit int

	CreateCalls int
	GetCalls    int
	ListCalls   int
	RefundCalls int

	LastRefund  domain.RefundRequest
	LastCreated domain.SessionRequest
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		RefundResp: domain.Refund{Status: "succeeded"},
	}
}

// CreateSession регистрирует запрос и возвращает открытую сессию.
func (m *MockGateway) CreateSession(creds domain.Credentials, req domain.SessionRequest) (domain.Session, error) {
	m.CreateCalls++
	m.LastCreated = req
	if m.CreateErr != nil {
		return domain.Session{}, m.CreateErr
	}

	var total int64
	for _, line := range req.Lines {
		total += int64(line.Qty) * line.UnitPriceMinor
	}
	session := domain.Session{
		ID:          "cs_" + uuid.NewString(),
		URL:         "https://gateway.test/pay/" + req.OrderID,
		Status:      domain.SessionStatusOpen,
		AmountMinor: total,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	m.Sessions = append(m.Sessions, session)
	return session, nil
}

// GetSession возвращает ранее зарегистрированную сессию.
func (m *MockGateway) GetSession(creds domain.Credentials, sessionID string) (domain.Session, error) {
	m.GetCalls++
	if m.GetErr != nil {
		return domain.Session{}, m.GetErr
	}
	for _, s := range m.Sessions {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return domain.Session{}, domain.ErrGatewayUnavailable
}

// ListSessions отдаёт сессии страницами от новых к старым.
func (m *MockGateway) ListSessions(creds domain.Credentials, limit int, cursor string) (domain.SessionPage, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return domain.SessionPage{}, m.ListErr
	}
	if m.PageSizeLimit > 0 && limit > m.PageSizeLimit {
		limit = m.PageSizeLimit
	}
	if limit <= 0 {
		limit = 20
	}

	start := 0
	if cursor != "" {
		for i, s := range m.Sessions {
			if s.ID == cursor {
				start = i + 1
				break
			}
		}
	}

	page := domain.SessionPage{}
	for i := start; i < len(m.Sessions) && len(page.Sessions) < limit; i++ {
		page.Sessions = append(page.Sessions, m.Sessions[i])
	}
	if n := len(page.Sessions); n > 0 {
		page.NextCursor = page.Sessions[n-1].ID
		page.HasMore = start+n < len(m.Sessions)
	}
	return page, nil
}

// CreateRefund регистрирует возврат и возвращает настроенный результат.
func (m *MockGateway) CreateRefund(creds domain.Credentials, req domain.RefundRequest) (domain.Refund, error) {
	m.RefundCalls++
	m.LastRefund = req
	if m.RefundErr != nil {
		return domain.Refund{}, m.RefundErr
	}
	refund := m.RefundResp
	if refund.ID == "" {
		refund.ID = "re_" + uuid.NewString()
	}
	if refund.AmountMinor == 0 {
		refund.AmountMinor = req.AmountMinor
	}
	return refund, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
