package deduplication

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	reqctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Engine is the deduplication surface the routes invoke.
type Engine interface {
	Detect(ctx context.Context, tenantID string, entityType models.EntityType) (*models.DetectResult, error)
	List(ctx context.Context, tenantID string, entityType models.EntityType) ([]*models.EnrichedSuggestion, error)
	Get(ctx context.Context, tenantID, suggestionID string) (*models.EnrichedSuggestion, error)
	Merge(ctx context.Context, tenantID, suggestionID, primaryID, userID string) (*models.MergeResult, error)
	Dismiss(ctx context.Context, tenantID, suggestionID, userID string) (*models.DismissResult, error)
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// Register registers deduplication routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/detect/organizations", h.DetectOrganizations)
	g.POST("/detect/contacts", h.DetectContacts)
	g.GET("/suggestions", h.ListSuggestions)
	g.GET("/suggestions/:id", h.GetSuggestion)
	g.POST("/merge", h.Merge)
	g.POST("/dismiss", h.Dismiss)
}

type MergeRequest struct {
	SuggestionID string `json:"suggestionId" validate:"required"`
	PrimaryID    string `json:"primaryId" validate:"required"`
}

type DismissRequest struct {
	SuggestionID string `json:"suggestionId" validate:"required"`
}

func (h *Handler) DetectOrganizations(c echo.Context) error {
	return h.detect(c, models.EntityTypeOrganization)
}

func (h *Handler) DetectContacts(c echo.Context) error {
	return h.detect(c, models.EntityTypeContact)
}

func (h *Handler) detect(c echo.Context, entityType models.EntityType) error {
	ctx := c.Request().Context()

	result, err := h.engine.Detect(ctx, reqctx.GetTenantID(ctx), entityType)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListSuggestions lists pending suggestions for the entityType query parameter
func (h *Handler) ListSuggestions(c echo.Context) error {
	ctx := c.Request().Context()

	raw := c.QueryParam("entityType")
	if raw == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entityType query parameter is required")
	}
	entityType, err := models.ParseEntityType(raw)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	suggestions, err := h.engine.List(ctx, reqctx.GetTenantID(ctx), entityType)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, suggestions)
}

func (h *Handler) GetSuggestion(c echo.Context) error {
	ctx := c.Request().Context()

	suggestion, err := h.engine.Get(ctx, reqctx.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, suggestion)
}

// Merge merges the duplicate of a suggestion into the chosen primary
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	var req MergeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.engine.Merge(ctx, reqctx.GetTenantID(ctx), req.SuggestionID, req.PrimaryID, reqctx.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Dismiss(c echo.Context) error {
	ctx := c.Request().Context()

	var req DismissRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.engine.Dismiss(ctx, reqctx.GetTenantID(ctx), req.SuggestionID, reqctx.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return err
		}
	}
	return nil
}
