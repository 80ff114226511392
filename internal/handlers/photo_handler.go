package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/photoexchange/server/internal/middleware"
	"github.com/photoexchange/server/internal/models"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
	"github.com/photoexchange/server/internal/services"
)

// PhotoHandler handles photo-related endpoints
type PhotoHandler struct {
	repo           repository.PhotoRepo
	uploadService  *services.UploadService
	toggleService  *services.ToggleService
	maxUploadBytes int64
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(
	repo repository.PhotoRepo,
	uploadService *services.UploadService,
	toggleService *services.ToggleService,
	maxFileSizeMB int64,
) *PhotoHandler {
	return &PhotoHandler{
		repo:           repo,
		uploadService:  uploadService,
		toggleService:  toggleService,
		maxUploadBytes: maxFileSizeMB << 20,
	}
}

// Upload handles photo upload and exchange
// @Summary Upload a photo
// @Description Uploads a photo and exchanges it with the oldest open photo of another user.
// @Description Omit lon and lat to upload without a location.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param X-User-Handle header string true "Uploader handle"
// @Param file formData file true "Photo file to upload"
// @Param lon formData number false "Longitude"
// @Param lat formData number false "Latitude"
// @Param isPublic formData bool false "Show the photo in the public gallery"
// @Success 201 {object} models.UploadResult "Photo stored; exchanged is set when a partner was found"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Failure 413 {object} models.ErrorResponse "File too large"
// @Failure 503 {object} models.ErrorResponse "Store temporarily unavailable"
// @Security ApiKeyAuth
// @Router /api/photos [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "File too large.")
			return
		}
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided or file is empty.")
		return
	}
	defer file.Close()

	lon, lat, err := parseCoordinates(r.FormValue("lon"), r.FormValue("lat"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	isPublic, _ := strconv.ParseBool(r.FormValue("isPublic"))

	result, err := h.uploadService.Upload(r.Context(), services.UploadRequest{
		UserHandle: middleware.GetUserHandleFromContext(r.Context()),
		Lon:        lon,
		Lat:        lat,
		IsPublic:   isPublic,
		RemoteAddr: r.RemoteAddr,
	}, file)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := models.UploadResult{
		Photo:   models.PhotoToResponse(result.Photo),
		Outcome: string(result.Outcome),
	}
	if result.Exchanged != nil {
		exchanged := models.PhotoToResponse(result.Exchanged)
		response.Exchanged = &exchanged
	}

	respondJSON(w, http.StatusCreated, response)
}

// ToggleFavourite flips the caller's favourite mark on a photo
// @Summary Toggle favourite
// @Tags photos
// @Produce json
// @Param X-User-Handle header string true "Caller handle"
// @Param name path string true "Photo name"
// @Success 200 {object} models.ToggleResponse "favourited or unfavourited, with the new count"
// @Failure 404 {object} models.ToggleResponse "photo_does_not_exist or user_does_not_exist"
// @Failure 503 {object} models.ErrorResponse "Store temporarily unavailable"
// @Security ApiKeyAuth
// @Router /api/photos/{name}/favourite [post]
func (h *PhotoHandler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	result, err := h.toggleService.ToggleFavourite(r.Context(),
		middleware.GetUserHandleFromContext(r.Context()), chi.URLParam(r, "name"))
	h.respondToggle(w, r, result, err)
}

// FavouriteStatus returns whether the caller favourites a photo
// @Summary Favourite status
// @Tags photos
// @Produce json
// @Param X-User-Handle header string true "Caller handle"
// @Param name path string true "Photo name"
// @Success 200 {object} models.ToggleResponse "favourited or unfavourited, with the current count"
// @Failure 404 {object} models.ToggleResponse "photo_does_not_exist or user_does_not_exist"
// @Failure 503 {object} models.ErrorResponse "Store temporarily unavailable"
// @Security ApiKeyAuth
// @Router /api/photos/{name}/favourite [get]
func (h *PhotoHandler) FavouriteStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.toggleService.FavouriteStatus(r.Context(),
		middleware.GetUserHandleFromContext(r.Context()), chi.URLParam(r, "name"))
	h.respondToggle(w, r, result, err)
}

// ToggleReport flips the caller's report mark on a photo
// @Summary Toggle report
// @Tags photos
// @Produce json
// @Param X-User-Handle header string true "Caller handle"
// @Param name path string true "Photo name"
// @Success 200 {object} models.ToggleResponse "reported or unreported"
// @Failure 404 {object} models.ToggleResponse "photo_does_not_exist or user_does_not_exist"
// @Failure 503 {object} models.ErrorResponse "Store temporarily unavailable"
// @Security ApiKeyAuth
// @Router /api/photos/{name}/report [post]
func (h *PhotoHandler) ToggleReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.toggleService.ToggleReport(r.Context(),
		middleware.GetUserHandleFromContext(r.Context()), chi.URLParam(r, "name"))
	h.respondToggle(w, r, result, err)
}

func (h *PhotoHandler) respondToggle(w http.ResponseWriter, r *http.Request, result *services.ToggleResult, err error) {
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Status == services.TogglePhotoDoesNotExist || result.Status == services.ToggleUserDoesNotExist {
		status = http.StatusNotFound
	}

	respondJSON(w, status, models.ToggleResponse{
		Status: string(result.Status),
		Count:  result.Count,
	})
}

// Gallery lists public photos, newest first
// @Summary List public gallery
// @Tags photos
// @Produce json
// @Param skip query int false "Number of photos to skip" default(0)
// @Param take query int false "Number of photos to return (max 100)" default(50)
// @Success 200 {object} models.GalleryResponse "Gallery page"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid API key"
// @Failure 500 {object} models.ErrorResponse "Server error"
// @Security ApiKeyAuth
// @Router /api/gallery [get]
func (h *PhotoHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	skip := 0
	take := 50

	if s := r.URL.Query().Get("skip"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			skip = v
		}
	}

	if t := r.URL.Query().Get("take"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v >= 1 && v <= 100 {
			take = v
		}
	}

	logger := observability.WithContext(r.Context())

	photos, err := h.repo.ListGallery(r.Context(), skip, take)
	if err != nil {
		logger.WithError(err).Error("Error listing gallery")
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	totalCount, err := h.repo.GalleryCount(r.Context())
	if err != nil {
		logger.WithError(err).Error("Error counting gallery")
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	responses := make([]models.PhotoResponse, len(photos))
	for i, p := range photos {
		responses[i] = models.PhotoToResponse(p)
	}

	respondJSON(w, http.StatusOK, models.GalleryResponse{
		Photos:     responses,
		TotalCount: totalCount,
		Skip:       skip,
		Take:       take,
	})
}

// parseCoordinates reads the lon/lat form values. Both empty means an
// anonymous upload.
func parseCoordinates(lonStr, latStr string) (float64, float64, error) {
	lonStr, latStr = strings.TrimSpace(lonStr), strings.TrimSpace(latStr)
	if lonStr == "" && latStr == "" {
		return models.AnonymousCoordinate, models.AnonymousCoordinate, nil
	}
	if lonStr == "" || latStr == "" {
		return 0, 0, errors.New("lon and lat must be provided together")
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, errors.New("lon must be a number")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, errors.New("lat must be a number")
	}
	return lon, lat, nil
}

// Helper functions

// respondServiceError maps service errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, models.ErrInvalidCoordinates),
		errors.Is(err, models.ErrEmptyFile),
		errors.Is(err, models.ErrInvalidPhotoName):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrFileTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "File too large.")
	case errors.Is(err, models.ErrTransientStore):
		observability.WithContext(r.Context()).WithError(err).Warn("Store unavailable")
		respondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
	default:
		observability.WithContext(r.Context()).WithError(err).Error("Request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
