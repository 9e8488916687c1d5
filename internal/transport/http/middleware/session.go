package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdfqa/internal/config"
	"pdfqa/internal/model"
	"pdfqa/internal/pkg/jwtutil"
	"pdfqa/internal/transport/http/response"
)

const ContextSessionIDKey = "session_id"

type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*model.Session, bool, error)
}

// SessionCarrier moves the session id between client and server, either as
// a plain header or as a signed cookie.
type SessionCarrier struct {
	cfg config.SessionConfig
	ttl time.Duration
}

func NewSessionCarrier(cfg config.SessionConfig) *SessionCarrier {
	ttl := time.Duration(cfg.CookieTTLHour) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionCarrier{cfg: cfg, ttl: ttl}
}

func (s *SessionCarrier) HeaderName() string {
	return s.cfg.HeaderName
}

// Read returns the session id sent by the client, or "" when none or an
// invalid one was sent.
func (s *SessionCarrier) Read(c *gin.Context) string {
	if s.cfg.Mode != "cookie" {
		return c.GetHeader(s.cfg.HeaderName)
	}
	token, err := c.Cookie(s.cfg.CookieName)
	if err != nil || token == "" {
		return ""
	}
	claims, err := jwtutil.ParseToken(s.cfg.Secret, token)
	if err != nil {
		return ""
	}
	return claims.SessionID
}

// Write sends the session id back. The header is always set so clients in
// cookie mode can read it too.
func (s *SessionCarrier) Write(c *gin.Context, sessionID string) error {
	c.Set(ContextSessionIDKey, sessionID)
	c.Header(s.cfg.HeaderName, sessionID)
	if s.cfg.Mode != "cookie" {
		return nil
	}
	token, err := jwtutil.GenerateToken(s.cfg.Secret, sessionID, s.ttl)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, token, int(s.ttl.Seconds()), "/", "", s.cfg.SecureCookie, true)
	return nil
}

// Session resolves or mints the request's session before the handler runs.
func Session(carrier *SessionCarrier, resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, _, err := resolver.Resolve(c.Request.Context(), carrier.Read(c))
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "session unavailable")
			return
		}
		if err := carrier.Write(c, session.ID); err != nil {
			response.Error(c, http.StatusInternalServerError, "session unavailable")
			return
		}
		c.Next()
	}
}

func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionIDKey)
}
