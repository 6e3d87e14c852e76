package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-trader/ledger"
)

type positionView struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
	Qty    int64  `json:"qty"`
	Price  string `json:"price,omitempty"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Portfolio returns the user's holdings priced with live quotes. A
// failed lookup for one symbol is reported on that row only; the rest
// of the view still renders.
func (h *Handler) Portfolio(c *gin.Context) {
	report, err := h.ledger.Portfolio(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}

	positions := make([]positionView, 0, len(report.Positions))
	for _, pos := range report.Positions {
		view := positionView{Symbol: pos.Symbol, Name: pos.Name, Qty: pos.Qty}
		if pos.QuoteErr != nil {
			view.Error = ledger.ErrQuoteUnavailable.Error()
		} else {
			view.Price = pos.Price.String()
			view.Value = pos.Value.String()
		}
		positions = append(positions, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"cash":        report.Cash,
		"positions":   positions,
		"total_value": report.TotalValue,
	})
}

// History returns every order for the user, oldest first.
func (h *Handler) History(c *gin.Context) {
	orders, err := h.ledger.History(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
