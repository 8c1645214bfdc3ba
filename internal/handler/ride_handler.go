package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/middleware"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/service"
	"github.com/aditya/rideshare/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type RideHandler struct {
	rideService service.RideService
	chatService service.ChatService
	validate    *validator.Validate
}

func NewRideHandler(rideService service.RideService, chatService service.ChatService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		chatService: chatService,
		validate:    validator.New(),
	}
}

func (h *RideHandler) RegisterRoutes(r chi.Router) {
	r.Post("/rides", h.CreateRide)
	r.Get("/rides", h.ListOpenRides)
	r.Get("/rides/current", h.ListCurrentRides)
	r.Get("/rides/history", h.ListRideHistory)
	r.Post("/rides/join-by-code", h.JoinRideByCode)
	r.Get("/rides/{id}", h.GetRide)
	r.Delete("/rides/{id}", h.DeleteRide)
	r.Post("/rides/{id}/join", h.JoinRide)
	r.Post("/rides/{id}/leave", h.LeaveRide)
	r.Post("/rides/{id}/complete", h.CompleteRide)
	r.Get("/rides/{id}/messages", h.ListMessages)
}

// POST /v1/rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req models.CreateRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	ride, err := h.rideService.CreateRide(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, ride)
}

// GET /v1/rides
func (h *RideHandler) ListOpenRides(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	rides, err := h.rideService.ListOpenRides(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, rides)
}

// GET /v1/rides/current
func (h *RideHandler) ListCurrentRides(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	rides, err := h.rideService.ListCurrentRides(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, rides)
}

// GET /v1/rides/history
func (h *RideHandler) ListRideHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	rides, err := h.rideService.ListRideHistory(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, rides)
}

// GET /v1/rides/{id}
func (h *RideHandler) GetRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, ride)
}

// POST /v1/rides/{id}/join
func (h *RideHandler) JoinRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	ride, err := h.rideService.JoinRide(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Message(w, http.StatusOK, "Successfully joined the ride.", "ride", ride)
}

// POST /v1/rides/join-by-code
func (h *RideHandler) JoinRideByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req models.JoinByCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation("ride_code must be 6 letters or digits"))
		return
	}

	ride, err := h.rideService.JoinRideByCode(r.Context(), req.RideCode, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Message(w, http.StatusOK, "Successfully joined the ride.", "ride", ride)
}

// POST /v1/rides/{id}/leave
func (h *RideHandler) LeaveRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	ride, err := h.rideService.LeaveRide(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	if ride == nil {
		utils.Message(w, http.StatusOK, "Ride deleted as it had no members.", "", nil)
		return
	}
	utils.Message(w, http.StatusOK, "Successfully left the ride.", "ride", ride)
}

// POST /v1/rides/{id}/complete
func (h *RideHandler) CompleteRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	ride, err := h.rideService.CompleteRide(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Message(w, http.StatusOK, "Ride marked as completed successfully.", "ride", ride)
}

// DELETE /v1/rides/{id}
func (h *RideHandler) DeleteRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	if err := h.rideService.DeleteRide(r.Context(), id, userID); err != nil {
		handleError(w, err)
		return
	}

	utils.Message(w, http.StatusOK, "Ride deleted successfully.", "", nil)
}

// GET /v1/rides/{id}/messages
func (h *RideHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	msgs, err := h.chatService.ListMessages(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, msgs)
}

func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.Error(w, apperrors.Unauthorized("authentication required"))
		return "", false
	}
	return userID, true
}

// rideID reads the {id} path parameter. Ids that cannot exist are reported
// as missing rides.
func rideID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !utils.IsValidUUID(id) {
		utils.NotFound(w, "ride")
		return "", false
	}
	return id, true
}

func handleError(w http.ResponseWriter, err error) {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		utils.Error(w, apiErr)
		return
	}

	log.Printf("Unhandled error: %v", err)
	utils.InternalError(w, "internal server error")
}
