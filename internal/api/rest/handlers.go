// Package rest provides REST API handlers over a ReferenceModeStore
// and its recipe tooling.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/dto"
	arcserrors "github.com/arcs-project/arcs-core/internal/errors"
	"github.com/arcs-project/arcs-core/internal/middleware"
	"github.com/arcs-project/arcs-core/internal/services"
	"github.com/arcs-project/arcs-core/internal/validation"
)

// Handler serves the store-operations and recipe-tooling REST surface.
type Handler struct {
	storeService      *services.StoreService
	recipeService     *services.RecipeService
	refinementService *services.RefinementService
	validator         *validation.Validator
	logger            *zap.Logger
}

// NewHandler constructs a Handler wrapping the given services.
func NewHandler(storeService *services.StoreService, recipeService *services.RecipeService, refinementService *services.RefinementService, logger *zap.Logger) *Handler {
	return &Handler{
		storeService:      storeService,
		recipeService:     recipeService,
		refinementService: refinementService,
		validator:         validation.NewValidator(),
		logger:            logger,
	}
}

// SetupRoutes configures every REST route this handler serves.
func (h *Handler) SetupRoutes(router *gin.RouterGroup) {
	operations := router.Group("/operations")
	{
		operations.POST("", h.PostOperations)
	}

	sync := router.Group("/sync")
	{
		sync.POST("", h.RequestSync)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", h.Subscribe)
	}

	recipes := router.Group("/recipes")
	{
		recipes.POST("/validate", h.ValidateRecipe)
		recipes.POST("/normalize", h.NormalizeRecipe)
	}

	refinements := router.Group("/refinements")
	{
		refinements.POST("/validate", h.ValidateRefinement)
	}

	system := router.Group("/system")
	{
		system.GET("/health", h.Health)
		system.GET("/status", h.Status)
	}
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, arcserrors.Wrap(err, "failed to parse request body"))
		return false
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		if ve, ok := err.(*validation.ValidationError); ok {
			c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
				ErrorResponse: dto.ErrorResponse{
					BaseResponse: dto.BaseResponse{Success: false, Timestamp: time.Now()},
					Error:        &dto.ErrorDetail{Code: "VALIDATION_FAILED", Message: "request failed validation"},
				},
				ValidationErrors: ve.Errors,
			})
			return false
		}
		h.respondError(c, arcserrors.Wrap(err, "request validation failed"))
		return false
	}
	return true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	arcsErr, ok := arcserrors.As(err)
	if !ok {
		arcsErr = arcserrors.Wrap(err, "request failed")
	}
	c.JSON(arcsErr.HTTPStatus(), dto.ErrorResponse{
		BaseResponse: dto.BaseResponse{
			Success:   false,
			Timestamp: time.Now(),
			RequestID: middleware.GetRequestID(c),
		},
		Error: &dto.ErrorDetail{
			Code:    string(arcsErr.Code),
			Message: arcsErr.Message,
			Details: arcsErr.Details,
		},
	})
}

// PostOperations godoc
// @Summary Submit CRDT operations
// @Description Applies a batch of operations to the entity identified by id
// @Accept json
// @Produce json
// @Param request body dto.PostOperationsRequest true "Operations batch"
// @Success 202 {object} dto.StatusResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /operations [post]
func (h *Handler) PostOperations(c *gin.Context) {
	var req dto.PostOperationsRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if err := h.storeService.PostOperations(c.Request.Context(), req.ID, req.Operations); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.StatusResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now(), RequestID: req.RequestID},
		Status:       "accepted",
	})
}

// RequestSync godoc
// @Summary Request a full resync
// @Description Asks the store to resend the current model state
// @Accept json
// @Produce json
// @Param request body dto.SyncRequest true "Sync request"
// @Success 202 {object} dto.StatusResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /sync [post]
func (h *Handler) RequestSync(c *gin.Context) {
	var req dto.SyncRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if err := h.storeService.RequestSync(c.Request.Context(), req.SubscriptionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.StatusResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now(), RequestID: req.RequestID},
		Status:       "accepted",
	})
}

// Subscribe godoc
// @Summary Open a model-update subscription
// @Description Returns a subscription id; this endpoint does not read or forward the subscription's updates (a WebSocket connection opens its own subscription)
// @Accept json
// @Produce json
// @Success 201 {object} dto.SubscribeResponse
// @Router /subscriptions [post]
func (h *Handler) Subscribe(c *gin.Context) {
	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.respondError(c, arcserrors.Wrap(err, "failed to parse request body"))
		return
	}

	id, _ := h.storeService.Subscribe()
	c.JSON(http.StatusCreated, dto.SubscribeResponse{
		BaseResponse:   dto.BaseResponse{Success: true, Timestamp: time.Now()},
		SubscriptionID: id,
	})
}

// ValidateRecipe godoc
// @Summary Validate a recipe graph
// @Description Checks structural validity without normalizing or freezing the recipe
// @Accept json
// @Produce json
// @Param request body dto.RecipeValidateRequest true "Recipe graph"
// @Success 200 {object} dto.RecipeResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /recipes/validate [post]
func (h *Handler) ValidateRecipe(c *gin.Context) {
	var req dto.RecipeValidateRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	valid := h.recipeService.Validate(req.Recipe)
	if !valid {
		h.respondError(c, arcserrors.NewInvalidRecipeError("recipe failed isValid"))
		return
	}

	c.JSON(http.StatusOK, dto.RecipeResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now(), RequestID: req.RequestID},
		Resolved:     h.recipeService.IsResolved(req.Recipe),
	})
}

// NormalizeRecipe godoc
// @Summary Normalize a recipe graph
// @Description Freezes the recipe into its canonical form and returns its digest
// @Accept json
// @Produce json
// @Param request body dto.RecipeNormalizeRequest true "Recipe graph"
// @Success 200 {object} dto.RecipeResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /recipes/normalize [post]
func (h *Handler) NormalizeRecipe(c *gin.Context) {
	var req dto.RecipeNormalizeRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	canonical, digest, err := h.recipeService.Normalize(req.Recipe)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RecipeResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now(), RequestID: req.RequestID},
		Recipe:       canonical,
		Digest:       digest,
		Resolved:     h.recipeService.IsResolved(req.Recipe),
		Orphans:      req.Recipe.OrphanSlots(),
	})
}

// ValidateRefinement godoc
// @Summary Validate a record against refinement constraints
// @Description Evaluates each constraint's expression tree against the record
// @Accept json
// @Produce json
// @Param request body dto.RefinementValidateRequest true "Record and constraints"
// @Success 200 {object} dto.StatusResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /refinements/validate [post]
func (h *Handler) ValidateRefinement(c *gin.Context) {
	var req dto.RefinementValidateRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if err := h.refinementService.Validate(req.Record, req.Constraints); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now(), RequestID: req.RequestID},
		Status:       "valid",
	})
}

// Health godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /system/health [get]
func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	if !h.storeService.Idle() {
		status = "busy"
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now()},
		Status:       status,
		Version:      "1.0.0",
		Services:     map[string]string{"store": status},
	})
}

// Status godoc
// @Summary Store idleness status
// @Produce json
// @Success 200 {object} dto.StatusResponse
// @Router /system/status [get]
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StatusResponse{
		BaseResponse: dto.BaseResponse{Success: true, Timestamp: time.Now()},
		Status:       "ok",
		Data:         map[string]interface{}{"idle": h.storeService.Idle()},
	})
}
