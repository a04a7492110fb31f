package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	guestCookieName   = "ocr_guest_scans"
	guestCookieMaxAge = 365 * 24 * 60 * 60
)

// cookieGuestCounter backs the guest scan counter with a client-held
// cookie. Like the browser storage it replaces, it is device-local and
// resettable by clearing client state; making it tamper-proof is an
// explicit non-goal.
type cookieGuestCounter struct {
	c *gin.Context
}

// newGuestCounter binds a guest counter to the current request
func newGuestCounter(c *gin.Context) *cookieGuestCounter {
	return &cookieGuestCounter{c: c}
}

// Get returns the guest scan count carried by the request
func (g *cookieGuestCounter) Get(ctx context.Context) (int, error) {
	value, err := g.c.Cookie(guestCookieName)
	if err != nil {
		if err == http.ErrNoCookie {
			return 0, nil
		}
		return 0, err
	}

	count, err := strconv.Atoi(value)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

// Increment writes the counter back to the client
func (g *cookieGuestCounter) Increment(ctx context.Context) error {
	count, _ := g.Get(ctx)
	g.c.SetCookie(guestCookieName, strconv.Itoa(count+1), guestCookieMaxAge, "/", "", false, true)
	return nil
}
