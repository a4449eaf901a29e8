package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/internal/api/models"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/session"
	"github.com/rustyeddy/tradesim/sim"
)

// SessionHandler serves the session endpoints
type SessionHandler struct {
	m              *session.Manager
	log            *zap.Logger
	initialBalance decimal.Decimal
}

// NewSessionHandler creates a session handler. initialBalance funds
// sessions whose create request names none.
func NewSessionHandler(m *session.Manager, log *zap.Logger, initialBalance decimal.Decimal) *SessionHandler {
	return &SessionHandler{m: m, log: log, initialBalance: initialBalance}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := session.Params{
		ID:              req.ID,
		Name:            req.Name,
		Owner:           req.Owner,
		Instrument:      req.Instrument,
		Speed:           1,
		InitialBalance:  h.initialBalance,
		AccountCurrency: req.AccountCurrency,
	}
	if req.StartTimestamp != nil {
		p.StartTime = *req.StartTimestamp
	}
	if req.Speed != nil {
		p.Speed = *req.Speed
	}
	if req.InitialBalance != nil {
		p.InitialBalance = *req.InitialBalance
	}

	s, err := h.m.Create(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	h.log.Info("session created", zap.String("session", s.ID), zap.String("instrument", s.Instrument))
	c.JSON(http.StatusCreated, models.SessionResponse{Session: s})
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, models.SessionsResponse{Sessions: h.m.List()})
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.m.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Session: s})
}

// Snapshot handles GET /api/v1/sessions/:id/snapshot?transactions=n. Without
// n the manager default applies.
func (h *SessionHandler) Snapshot(c *gin.Context) {
	n := 0
	if raw := c.Query("transactions"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, fmt.Errorf("transactions must be a positive integer"))
			return
		}
		n = v
	}

	snap, err := h.m.Snapshot(c.Param("id"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Positions handles GET /api/v1/sessions/:id/positions
func (h *SessionHandler) Positions(c *gin.Context) {
	positions, err := h.m.Positions(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PositionsResponse{Positions: positions})
}

// Transactions handles GET /api/v1/sessions/:id/transactions
func (h *SessionHandler) Transactions(c *gin.Context) {
	txs, err := h.m.Transactions(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TransactionsResponse{Transactions: txs})
}

// Order handles POST /api/v1/sessions/:id/orders
func (h *SessionHandler) Order(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	// an unknown side is left for the engine to reject in order
	side, err := market.ParseSide(req.Side)
	if err != nil {
		side = market.Side(strings.ToUpper(req.Side))
	}

	fill, err := h.m.SubmitOrder(c.Request.Context(), c.Param("id"), sim.Order{
		Side:        side,
		Quantity:    req.Quantity,
		RequestedAt: req.RequestedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FillResponse{Fill: fill})
}

// Control handles POST /api/v1/sessions/:id/control
func (h *SessionHandler) Control(c *gin.Context) {
	var req models.ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, id := c.Request.Context(), c.Param("id")
	var (
		s   session.Session
		err error
	)
	switch strings.ToLower(req.Action) {
	case "start":
		s, err = h.m.Start(ctx, id)
	case "pause":
		s, err = h.m.Pause(ctx, id)
	case "resume":
		s, err = h.m.Resume(ctx, id)
	case "stop":
		s, err = h.m.Stop(ctx, id)
	case "archive":
		s, err = h.m.Archive(ctx, id)
	case "seek":
		if req.To == nil {
			badRequest(c, fmt.Errorf("seek requires to"))
			return
		}
		s, err = h.m.Seek(ctx, id, *req.To)
	case "speed":
		if req.Speed == nil {
			badRequest(c, fmt.Errorf("speed requires speed"))
			return
		}
		s, err = h.m.SetSpeed(ctx, id, *req.Speed)
	default:
		badRequest(c, fmt.Errorf("unknown action %q", req.Action))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Session: s})
}

// Funds handles POST /api/v1/sessions/:id/funds
func (h *SessionHandler) Funds(c *gin.Context) {
	var req models.FundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, id := c.Request.Context(), c.Param("id")
	var err error
	var resp models.TransactionResponse
	switch strings.ToLower(req.Type) {
	case "deposit":
		resp.Transaction, err = h.m.Deposit(ctx, id, req.Amount)
	case "withdraw", "withdrawal":
		resp.Transaction, err = h.m.Withdraw(ctx, id, req.Amount)
	case "adjust", "adjustment":
		resp.Transaction, err = h.m.Adjust(ctx, id, req.Amount, req.Note)
	default:
		badRequest(c, fmt.Errorf("unknown funds type %q", req.Type))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
