package handlers

import (
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/bensuskins/family-kitchen/internal/services"
	"github.com/go-chi/chi/v5"
)

type MealPlanHandler struct {
	mealPlanService *services.MealPlanService
}

func NewMealPlanHandler(mealPlanService *services.MealPlanService) *MealPlanHandler {
	return &MealPlanHandler{mealPlanService: mealPlanService}
}

func (handler *MealPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := repository.MealPlanFilter{
		DateFrom: r.URL.Query().Get("from"),
		DateTo:   r.URL.Query().Get("to"),
	}

	plans, err := handler.mealPlanService.List(ctx, middleware.GetUser(ctx), filter)
	if err != nil {
		writeServiceError(w, err, "listing meal plans")
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (handler *MealPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := handler.mealPlanService.Get(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading meal plan")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (handler *MealPlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.MealPlanInput
	if !decodeJSON(w, r, &input) {
		return
	}

	plan, err := handler.mealPlanService.Create(ctx, middleware.GetUser(ctx), input)
	if err != nil {
		writeServiceError(w, err, "creating meal plan")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (handler *MealPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := handler.mealPlanService.Delete(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "deleting meal plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *MealPlanHandler) SaveSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.MealSlotInput
	if !decodeJSON(w, r, &input) {
		return
	}

	slot, err := handler.mealPlanService.SaveSlot(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err, "saving meal slot")
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (handler *MealPlanHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := handler.mealPlanService.DeleteSlot(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "slotID"))
	if err != nil {
		writeServiceError(w, err, "deleting meal slot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
