package server

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

// sessionIDPrefix marks server-issued session identifiers.
const sessionIDPrefix = "sess-"

type sessionCtxKey struct{}

// sessionInfo travels on the request context: the resolved session
// identifier plus the cookie to set when the session was minted on this
// request (nil when the client already had one).
type sessionInfo struct {
	id        string
	newCookie *http.Cookie
}

// newSessionID generates an opaque, unguessable session identifier.
func newSessionID() string {
	return sessionIDPrefix + ulid.Make().String()
}

// withSession resolves the session cookie, minting one on first contact,
// and stores the session identifier on the request context. Every route
// runs behind this middleware, the websocket handshake included.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := sessionInfo{}
		if c, err := r.Cookie(s.config.CookieName); err == nil && c.Value != "" {
			info.id = c.Value
		} else {
			info.id = newSessionID()
			info.newCookie = &http.Cookie{
				Name:     s.config.CookieName,
				Value:    info.id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   s.config.SecureCookies,
			}
			// The websocket handler bypasses w after hijacking, so it
			// re-sends this cookie on the 101 response itself.
			http.SetCookie(w, info.newCookie)
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionID returns the session identifier resolved for this request, or
// "" when the request did not pass through the session middleware.
func SessionID(ctx context.Context) string {
	if info, ok := ctx.Value(sessionCtxKey{}).(sessionInfo); ok {
		return info.id
	}
	return ""
}

func sessionFrom(ctx context.Context) sessionInfo {
	info, _ := ctx.Value(sessionCtxKey{}).(sessionInfo)
	return info
}
