package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/visabot-io/visabot/internal/models"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

type receiveDataRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	PetName      string `json:"pet_name"`
	FavoriteFood string `json:"favorite_food"`
	Sibling      string `json:"sibling"`
	ConsularPost string `json:"consular_post"`
	CheckDays    int    `json:"check_days"`
	Email        string `json:"email"`
	Status       *int   `json:"status"`
	CreatedAt    string `json:"created_at"`
	LastChecked  string `json:"last_checked"`
}

// ReceiveDataHandler is the registration webhook: it persists a new user,
// filling defaults for anything the registrar omitted.
func (a *API) ReceiveDataHandler(w http.ResponseWriter, r *http.Request) {
	var req receiveDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Password:     req.Password,
		PetName:      req.PetName,
		FavoriteFood: req.FavoriteFood,
		Sibling:      req.Sibling,
		ConsularPost: req.ConsularPost,
		CheckDays:    req.CheckDays,
		Email:        req.Email,
		LastChecked:  req.LastChecked,
	}
	if req.Status != nil {
		user.Status = models.Status(*req.Status)
	}
	if req.CreatedAt != "" {
		if ts, err := models.ParseLastChecked(req.CreatedAt); err == nil {
			user.CreatedAt = ts
		}
	}

	if err := a.store.CreateUser(user); err != nil {
		a.log.Errorw("failed to save user", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	a.log.Infow("user registered", "user_id", user.ID, "consular_post", user.ConsularPost)
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Data received and saved successfully",
		Data:    user,
	})
}

type updateStatusRequest struct {
	UserID string `json:"user_id"`
	Status int    `json:"status"`
}

// UpdateStatusHandler moves a user between lifecycle states.
func (a *API) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := a.store.UpdateStatus(req.UserID, models.Status(req.Status)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Status updated successfully",
	})
}

type deleteUserRequest struct {
	UserID string `json:"user_id"`
}

// DeleteUserHandler removes a registration.
func (a *API) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Success: false, Error: "User ID is required"})
		return
	}

	if err := a.store.DeleteUser(req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "User deleted successfully",
	})
}

// ActiveTasksHandler reports the in-flight runs for monitoring.
func (a *API) ActiveTasksHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := a.registry.Snapshot()
	tasks := make(map[string]string, len(snapshot))
	for id, started := range snapshot {
		tasks[id] = started.Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active_tasks": len(tasks),
		"tasks":        tasks,
	})
}

// HealthHandler is the liveness endpoint.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"active_tasks": a.registry.Len(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}
