package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/household"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

type HouseholdHandler struct {
	service *household.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewHouseholdHandler(svc *household.Service, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{service: svc, hub: hub, logger: logger}
}

type createHouseholdRequest struct {
	Name string `json:"name"`
}

type joinHouseholdRequest struct {
	JoinCode string `json:"join_code"`
}

type addChoreRequest struct {
	Title        string `json:"title"`
	AssignedToID string `json:"assigned_to_id"`
}

type updateChoreRequest struct {
	Title        *string        `json:"title"`
	Status       *string        `json:"status"`
	AssignedToID optionalString `json:"assigned_to_id"`
}

type householdResponse struct {
	Message   string               `json:"message,omitempty"`
	Household *model.HouseholdView `json:"household"`
}

// user returns the caller. Routes are mounted behind RequireAuth, so a
// missing identity is a wiring fault reported as Unauthenticated.
func (h *HouseholdHandler) user(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return model.User{}, false
	}
	return ac.User, true
}

func (h *HouseholdHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("household request failed",
			"request_id", middleware.RequestID(r.Context()),
			"path", r.URL.Path,
			"user_id", auth.UserID(r.Context()),
			"error", err)
	}
	writeError(w, status, household.Message(err))
}

// notify pushes the household's new state to its members.
func (h *HouseholdHandler) notify(hh *model.Household) {
	if h.hub == nil {
		return
	}
	view := hh.View()
	h.hub.SendToUsers(hh.MemberIDs(), websocket.NewMessage("household", "updated", hh.ID, map[string]any{
		"household": view,
	}))
}

func (h *HouseholdHandler) respond(w http.ResponseWriter, status int, msg string, hh *model.Household) {
	view := hh.View()
	writeJSON(w, status, householdResponse{Message: msg, Household: &view})
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req createHouseholdRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.service.CreateHousehold(r.Context(), user, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusCreated, "Household created.", hh)
}

func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req joinHouseholdRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.service.JoinHousehold(r.Context(), user, req.JoinCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusOK, "Joined household successfully.", hh)
}

func (h *HouseholdHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	hh, err := h.service.GetHouseholdFor(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if hh == nil {
		writeJSON(w, http.StatusOK, householdResponse{})
		return
	}
	h.respond(w, http.StatusOK, "", hh)
}

func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	householdID := auth.HouseholdID(r.Context())

	res, err := h.service.LeaveHousehold(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var msg string
	switch {
	case res.MembershipReset:
		msg = "Household not found. Your membership was reset."
	case res.HouseholdDeleted:
		msg = "You left the household. Since you were the last member, the household was deleted."
		if h.hub != nil {
			h.hub.SendToUsers([]string{user.ID}, websocket.NewMessage("household", "deleted", householdID, nil))
		}
	default:
		msg = "You left the household."
		if res.Household != nil {
			h.notify(res.Household)
		}
	}
	writeJSON(w, http.StatusOK, householdResponse{Message: msg})
}

func (h *HouseholdHandler) AddChore(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req addChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.service.AddChore(r.Context(), user, req.Title, req.AssignedToID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusCreated, "Chore added.", hh)
}

func (h *HouseholdHandler) UpdateChore(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req updateChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hh, err := h.service.UpdateChore(r.Context(), user, r.PathValue("id"), household.ChoreUpdate{
		Title:      req.Title,
		Status:     req.Status,
		AssignedTo: req.AssignedToID.ptr(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusOK, "Chore updated.", hh)
}

func (h *HouseholdHandler) DeleteChore(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	hh, err := h.service.DeleteChore(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusOK, "Chore deleted.", hh)
}

func (h *HouseholdHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	hh, err := h.service.RotateChores(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.notify(hh)
	h.respond(w, http.StatusOK, "Chores rotated successfully.", hh)
}
