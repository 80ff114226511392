package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
	"github.com/photoexchange/server/internal/services"
)

// AdminHandler handles operator endpoints
type AdminHandler struct {
	userRepo  repository.UserRepo
	scheduler *services.LifecycleScheduler
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userRepo repository.UserRepo, scheduler *services.LifecycleScheduler) *AdminHandler {
	return &AdminHandler{
		userRepo:  userRepo,
		scheduler: scheduler,
	}
}

// CreateUser registers a user handle
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateUserRequest true "User handle"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security AdminKeyAuth
// @Router /api/admin/users [post]
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := models.NewUser(req.Handle)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userRepo.Add(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateHandle) {
			respondError(w, http.StatusConflict, "Handle already registered.")
			return
		}
		observability.WithContext(r.Context()).WithError(err).Error("Failed to create user")
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// RunLifecycle runs soft and hard deletion immediately
// @Summary Run lifecycle now
// @Tags admin
// @Produce json
// @Success 200 {object} models.LifecycleRunResult "Counts of photos deleted"
// @Failure 409 {object} models.ErrorResponse "A run is already in progress"
// @Failure 503 {object} models.ErrorResponse "Store temporarily unavailable"
// @Security AdminKeyAuth
// @Router /api/admin/lifecycle/run [post]
func (h *AdminHandler) RunLifecycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunNow(r.Context())
	if errors.Is(err, services.ErrLifecycleRunning) {
		respondError(w, http.StatusConflict, "Lifecycle run already in progress.")
		return
	}
	if err != nil {
		observability.WithContext(r.Context()).WithError(err).Error("Lifecycle run failed")
		respondError(w, http.StatusServiceUnavailable, "Lifecycle run failed.")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetLifecycleStatus returns the scheduler status
// @Summary Lifecycle status
// @Tags admin
// @Produce json
// @Success 200 {object} services.LifecycleStatus "Scheduler status"
// @Security AdminKeyAuth
// @Router /api/admin/lifecycle [get]
func (h *AdminHandler) GetLifecycleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetStatus())
}
