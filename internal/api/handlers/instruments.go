package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/tradesim/internal/api/models"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/market/data"
)

type InstrumentHandler struct {
	catalog *market.Catalog
	source  *data.Source
}

func NewInstrumentHandler(catalog *market.Catalog, source *data.Source) *InstrumentHandler {
	return &InstrumentHandler{catalog: catalog, source: source}
}

// List handles GET /api/v1/instruments
func (h *InstrumentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, models.InstrumentsResponse{
		Instruments: h.catalog.All(),
		WithData:    h.source.Instruments(),
	})
}

// Health handles GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
