package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/tradesim/internal/api/models"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/market/data"
	"github.com/rustyeddy/tradesim/session"
	"github.com/rustyeddy/tradesim/sim"
)

var reasonStatus = map[sim.Reason]int{
	sim.ReasonSessionNotFound:    http.StatusNotFound,
	sim.ReasonSessionBusy:        http.StatusTooManyRequests,
	sim.ReasonInvalidTransition:  http.StatusConflict,
	sim.ReasonSessionNotRunning:  http.StatusConflict,
	sim.ReasonPositionOpen:       http.StatusConflict,
	sim.ReasonNoPriceData:        http.StatusConflict,
	sim.ReasonInstrumentDisabled: http.StatusUnprocessableEntity,
	sim.ReasonInvalidQuantity:    http.StatusUnprocessableEntity,
	sim.ReasonInvalidSide:        http.StatusUnprocessableEntity,
	sim.ReasonInsufficientMargin: http.StatusUnprocessableEntity,
	sim.ReasonInsufficientFunds:  http.StatusUnprocessableEntity,
	sim.ReasonInvalidArgument:    http.StatusBadRequest,
}

// classify maps an error to its HTTP status and envelope code.
func classify(err error) (int, string) {
	if reason, ok := sim.ReasonOf(err); ok {
		if status, ok := reasonStatus[reason]; ok {
			return status, string(reason)
		}
		return http.StatusUnprocessableEntity, string(reason)
	}

	var inv *sim.InvariantError
	switch {
	case errors.As(err, &inv):
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	case errors.Is(err, market.ErrInstrumentNotFound):
		return http.StatusNotFound, "InstrumentNotFound"
	case errors.Is(err, data.ErrNoData):
		return http.StatusUnprocessableEntity, "NoData"
	case errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: err.Error()},
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
	})
}
