package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type TradeInput struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int64  `json:"shares" binding:"required,min=1"`
}

func (h *Handler) Quote(c *gin.Context) {
	quote, err := h.quotes.Lookup(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// Buy resolves a live quote and executes the purchase at that price.
func (h *Handler) Buy(c *gin.Context) {
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	quote, err := h.quotes.Lookup(ctx, input.Symbol)
	if err != nil {
		fail(c, err)
		return
	}

	orderID, err := h.ledger.Buy(ctx, userID(c), quote.Symbol, quote.Name, input.Shares, quote.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID, "price": quote.Price})
}

// Sell resolves a live quote and executes the sale at that price.
func (h *Handler) Sell(c *gin.Context) {
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	quote, err := h.quotes.Lookup(ctx, input.Symbol)
	if err != nil {
		fail(c, err)
		return
	}

	orderID, err := h.ledger.Sell(ctx, userID(c), quote.Symbol, input.Shares, quote.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID, "price": quote.Price})
}
