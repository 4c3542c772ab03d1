package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/internal/session"
)

const cookieName = "token"

// Middleware validates the access token from the "token" cookie or a Bearer header and
// stores the doctor in the request context.
func Middleware(tokens *Tokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				logger.WarnContext(r.Context(), "no auth token found", "path", r.URL.Path)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid token", "error", err)
				httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := session.WithDoctor(r.Context(), claims.DoctorID, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// CookiePolicy decides cookie flags per environment.
type CookiePolicy struct {
	Env string
}

// SetAuthCookie sets the access token in an HttpOnly cookie
func (p CookiePolicy) SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	sameSite := http.SameSiteStrictMode
	if p.Env == "development" || p.Env == "local" {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   p.secure(),
		SameSite: sameSite,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

func (p CookiePolicy) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   p.secure(),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// Secure cookies require HTTPS
func (p CookiePolicy) secure() bool {
	return p.Env == "production" || p.Env == "prod"
}
