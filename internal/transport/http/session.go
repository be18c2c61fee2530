package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	sessionCookieName = "storefront_session"
	sessionCookieTTL  = 180 * 24 * time.Hour

	headerSiteID    = "X-Site-ID"
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
)

// requestContext — разобранная identity запроса: тенант, авторизованный
// пользователь (если платформа его передала) и анонимная сессия.
type requestContext struct {
	SiteID   string
	Identity domain.Identity
	Email    string
}

// resolveContext извлекает identity запроса. Анонимная сессионная кука
// выставляется при первом обращении к корзине, httpOnly и долгоживущая.
func resolveContext(w http.ResponseWriter, r *http.Request, ensureSession bool) (requestContext, error) {
	siteID := r.Header.Get(headerSiteID)
	if siteID == "" {
		return requestContext{}, domain.ErrSiteIDRequired
	}

	rc := requestContext{
		SiteID: siteID,
		Email:  r.Header.Get(headerUserEmail),
	}
	rc.Identity.UserID = r.Header.Get(headerUserID)

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		rc.Identity.SessionID = cookie.Value
	} else if ensureSession {
		rc.Identity.SessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    rc.Identity.SessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(sessionCookieTTL),
		})
	}

	return rc, nil
}
