package handlers

import (
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Calendar serves a meal plan as an .ics download.
func (handler *MealPlanHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	calendar, err := handler.mealPlanService.Calendar(ctx, middleware.GetUser(ctx), id)
	if err != nil {
		writeServiceError(w, err, "exporting meal plan calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=meal-plan-"+id+".ics")
	w.Write([]byte(calendar))
}
