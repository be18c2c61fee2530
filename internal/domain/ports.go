package domain

import "time"

// Credentials — разрешённые ключи шлюза для одной операции тенанта.
// Выдаются кредентиал-резолвером строго под заявленное окружение.
type Credentials struct {
	Environment   Environment
	SecretKey     string
	WebhookSecret string
}

// SessionLine — одна позиция checkout-сессии. Цены всегда берутся из
// серверной валидации, никогда из клиентского ввода.
type SessionLine struct {
	Title          string
	Qty            int32
	UnitPriceMinor int64
}

// SessionRequest описывает создание checkout-сессии под конкретный заказ.
type SessionRequest struct {
	OrderID    string
	SiteID     string
	BuyerEmail string
	Currency   string
	Lines      []SessionLine
	SuccessURL string
	CancelURL  string
	// Metadata связывает сессию с заказом и сайтом; по ней же работает
	// поиск платёжной ссылки при возврате средств.
	Metadata map[string]string
}

// SessionStatus — состояние checkout-сессии у шлюза.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// Session — checkout-сессия, размещённая у шлюза.
type Session struct {
	ID          string
	URL         string
	Status      SessionStatus
	Paid        bool
	PaymentRef  string
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// SessionPage — страница постраничного списка сессий.
type SessionPage struct {
	Sessions   []Session
	HasMore    bool
	NextCursor string
}

// RefundRequest описывает возврат средств по платёжной ссылке.
type RefundRequest struct {
	PaymentRef  string
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

// Refund — результат возврата у шлюза.
type Refund struct {
	ID          string
	AmountMinor int64
	Status      string
}

// PaymentGateway — узкий порт платёжного шлюза. Конкретный клиент
// (HTTP либо mock) подменяется за этим интерфейсом целиком.
type PaymentGateway interface {
	// CreateSession создаёт checkout-сессию под заказ.
	CreateSession(creds Credentials, req SessionRequest) (Session, error)
	// GetSession возвращает сессию по идентификатору.
	GetSession(creds Credentials, sessionID string) (Session, error)
	// ListSessions возвращает страницу недавних сессий тенанта;
	// cursor — идентификатор последней сессии предыдущей страницы.
	ListSessions(creds Credentials, limit int, cursor string) (SessionPage, error)
	// CreateRefund инициирует возврат средств по платёжной ссылке.
	CreateRefund(creds Credentials, req RefundRequest) (Refund, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}
