package handlers

import (
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/services"
)

type HouseholdHandler struct {
	householdService *services.HouseholdService
}

func NewHouseholdHandler(householdService *services.HouseholdService) *HouseholdHandler {
	return &HouseholdHandler{householdService: householdService}
}

type householdResponse struct {
	models.Household
	Members []models.User `json:"members"`
}

func (handler *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	household, err := handler.householdService.Create(r.Context(), middleware.GetUser(r.Context()), body.Name)
	if err != nil {
		writeServiceError(w, err, "creating household")
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

func (handler *HouseholdHandler) Current(w http.ResponseWriter, r *http.Request) {
	household, members, err := handler.householdService.Current(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		writeServiceError(w, err, "loading household")
		return
	}
	if members == nil {
		members = []models.User{}
	}
	writeJSON(w, http.StatusOK, householdResponse{Household: household, Members: members})
}

func (handler *HouseholdHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := handler.householdService.CreateInvite(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		writeServiceError(w, err, "creating invite")
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (handler *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	household, err := handler.householdService.Join(r.Context(), middleware.GetUser(r.Context()), body.Token)
	if err != nil {
		writeServiceError(w, err, "joining household")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

func (handler *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := handler.householdService.Leave(r.Context(), middleware.GetUser(r.Context())); err != nil {
		writeServiceError(w, err, "leaving household")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
