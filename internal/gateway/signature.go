package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SignatureHeader — HTTP-заголовок с подписью webhook-события.
const SignatureHeader = "Gateway-Signature"

// DefaultTolerance — допустимый возраст подписи webhook-события.
// Более старые события отклоняются как возможный replay.
const DefaultTolerance = 5 * time.Minute

// SignPayload подписывает тело события секретом webhook для момента t
// по схеме шлюза: заголовок "t=<unix>,v1=<hex(hmac-sha256)>", подпись
// берётся от строки "<unix>.<body>". Используется тестами и стендами;
// боевые события подписывает сам шлюз.
func SignPayload(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature проверяет заголовок подписи против тела события.
// Любое расхождение (формат, секрет, возраст) отклоняется закрыто:
// возвращается domain.ErrSignatureInvalid без деталей для вызывающего.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if secret == "" || header == "" {
		return domain.ErrSignatureInvalid
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	// Библиотека отклоняет только устаревшие метки; метка из будущего
	// дальше допуска — такой же признак replay или сломанных часов.
	ts, ok := headerTimestamp(header)
	if !ok || time.Until(time.Unix(ts, 0)) > tolerance {
		return domain.ErrSignatureInvalid
	}

	if err := webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance); err != nil {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// headerTimestamp извлекает метку времени из заголовка подписи.
func headerTimestamp(header string) (int64, bool) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && kv[0] == "t" {
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			return ts, err == nil
		}
	}
	return 0, false
}
