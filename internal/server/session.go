package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SessionCookie = "pdfebc_session"
	flashCookie   = "pdfebc_flash"

	sessionKey    = "session_id"
	sessionMaxAge = 24 * time.Hour
)

// sessionMiddleware attaches a session ID to every request, issuing a new one when the
// cookie is missing or does not hold a UUID.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(SessionCookie)
		if err == nil {
			if id, err := uuid.Parse(cookie.Value); err == nil {
				c.Set(sessionKey, id.String())
				return next(c)
			}
		}

		rotateSession(c)
		return next(c)
	}
}

// rotateSession starts a new session for the rest of the request and for the client.
func rotateSession(c echo.Context) string {
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(sessionKey, id)
	return id
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

func setFlash(c echo.Context, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending flash message and clears it.
func popFlash(c echo.Context) string {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}

	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return msg
}
