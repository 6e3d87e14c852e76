package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-trader/auth"
	"paper-trader/ledger"
	"paper-trader/middleware"
)

// Handler wires the trading core behind a gin JSON API. It carries no
// presentation logic beyond mapping domain errors to HTTP statuses.
type Handler struct {
	ledger *ledger.Ledger
	auth   *auth.Service
	tokens *auth.TokenIssuer
	quotes ledger.QuoteProvider
}

// New creates a Handler over the core services.
func New(l *ledger.Ledger, a *auth.Service, t *auth.TokenIssuer, q ledger.QuoteProvider) *Handler {
	return &Handler{ledger: l, auth: a, tokens: t, quotes: q}
}

// Register attaches all routes to router. Trading routes sit behind
// the JWT middleware; signup, login and the username check are public.
func (h *Handler) Register(router *gin.Engine, jwtSecret string) {
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.GET("/check/:name", h.CheckUsername)

	authorized := router.Group("/")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/quote/:symbol", h.Quote)
		authorized.POST("/buy", h.Buy)
		authorized.POST("/sell", h.Sell)
		authorized.GET("/portfolio", h.Portfolio)
		authorized.GET("/history", h.History)
	}
}

func userID(c *gin.Context) uint {
	return c.MustGet(middleware.UserIDKey).(uint)
}

// fail maps a domain error to its HTTP status and writes the JSON
// error body.
func fail(c *gin.Context, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrPasswordMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNoSuchHolding),
		errors.Is(err, ledger.ErrQuoteNotFound),
		errors.Is(err, ledger.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ledger.ErrQuoteUnavailable.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
