package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const exportFilename = "quotes.json"

// QuoteHandler handles quote-related HTTP endpoints.
type QuoteHandler struct {
	service *app.QuoteService
	html    ports.Renderer
}

// NewQuoteHandler creates a new quote handler. html renders GET /quotes/render.
func NewQuoteHandler(service *app.QuoteService, html ports.Renderer) *QuoteHandler {
	return &QuoteHandler{
		service: service,
		html:    html,
	}
}

// ListQuotes handles GET /api/v1/quotes
//
// @Summary List quotes
// @Description Lists quotes in store order, filtered by category (saved filter when omitted)
// @Tags quotes
// @Produce json
// @Param category query string false "Category, or all"
// @Param limit query int false "Page size (1-100)"
// @Param cursor query string false "Cursor from a previous page"
// @Success 200 {object} dto.PaginatedResponse[dto.QuoteResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	// Cursors are bound to the category actually listed, so a page taken
	// under one saved filter is rejected once the filter changes.
	category, err := h.service.ListCategory(ctx, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	quotes, err := h.service.ListQuotes(ctx, category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	page, err := dto.Paginate(dto.NewQuoteResponses(quotes), &req.PaginationRequest, category)
	if err != nil {
		dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// AddQuote handles POST /api/v1/quotes
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.AddQuoteRequest true "Quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	quote, err := h.service.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// RandomQuote handles GET /api/v1/quotes/random
//
// @Summary Get a random quote
// @Description Picks uniformly among the quotes of a category and remembers it as last viewed
// @Tags quotes
// @Produce json
// @Param category query string false "Category, or all"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	quote, err := h.service.RandomQuote(c.Request.Context(), c.Query("category"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// LastQuote handles GET /api/v1/quotes/last
func (h *QuoteHandler) LastQuote(c *gin.Context) {
	quote, err := h.service.LastViewed(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// RenderQuotes handles GET /api/v1/quotes/render and returns an HTML fragment.
func (h *QuoteHandler) RenderQuotes(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.Render(c.Request.Context(), c.Query("category"), h.html, &buf); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Data(http.StatusOK, h.html.ContentType(), buf.Bytes())
}

// ExportQuotes handles GET /api/v1/quotes/export
//
// @Summary Export quotes
// @Description Downloads the full list as quotes.json, gzip-compressed when gzip=true
// @Tags quotes
// @Produce json
// @Param gzip query bool false "Compress the download"
// @Success 200 {array} dto.QuoteResponse
// @Router /api/v1/quotes/export [get]
func (h *QuoteHandler) ExportQuotes(c *gin.Context) {
	compress, err := strconv.ParseBool(c.DefaultQuery("gzip", "false"))
	if err != nil {
		dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, "gzip must be a boolean")
		return
	}

	var buf bytes.Buffer

	filename := exportFilename
	contentType := "application/json"

	if compress {
		err = h.service.ExportGzip(c.Request.Context(), &buf)
		filename += ".gz"
		contentType = "application/gzip"
	} else {
		err = h.service.Export(c.Request.Context(), &buf)
	}

	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ImportQuotes handles POST /api/v1/quotes/import with a JSON array body.
// A malformed body or invalid element changes nothing.
//
// @Summary Import quotes
// @Tags quotes
// @Accept json
// @Produce json
// @Success 200 {object} dto.ImportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes/import [post]
func (h *QuoteHandler) ImportQuotes(c *gin.Context) {
	n, err := h.service.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{Imported: n, Total: h.service.Count()})
}

// Categories handles GET /api/v1/categories
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: h.service.Categories(c.Request.Context()),
	})
}

// GetFilter handles GET /api/v1/filter
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	category, err := h.service.Filter(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: category})
}

// SetFilter handles PUT /api/v1/filter
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	category, err := h.service.SetFilter(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: category})
}

// RegisterRoutes registers the quote routes on rg. write wraps mutating routes,
// typically with authentication.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.GET("/quotes", h.ListQuotes)
	rg.GET("/quotes/random", h.RandomQuote)
	rg.GET("/quotes/last", h.LastQuote)
	rg.GET("/quotes/render", h.RenderQuotes)
	rg.GET("/quotes/export", h.ExportQuotes)
	rg.GET("/categories", h.Categories)
	rg.GET("/filter", h.GetFilter)

	writes := rg.Group("", write...)
	writes.POST("/quotes", h.AddQuote)
	writes.POST("/quotes/import", h.ImportQuotes)
	writes.PUT("/filter", h.SetFilter)
}
