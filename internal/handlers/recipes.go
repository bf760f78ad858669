package handlers

import (
	"net/http"
	"strconv"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/services"
	"github.com/go-chi/chi/v5"
)

type RecipeHandler struct {
	recipeService *services.RecipeService
}

func NewRecipeHandler(recipeService *services.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipeService: recipeService}
}

func (handler *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipes, err := handler.recipeService.List(ctx, middleware.GetUser(ctx))
	if err != nil {
		writeServiceError(w, err, "listing recipes")
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (handler *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipe, err := handler.recipeService.Get(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (handler *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.RecipeInput
	if !decodeJSON(w, r, &input) {
		return
	}

	recipe, err := handler.recipeService.Create(ctx, middleware.GetUser(ctx), input)
	if err != nil {
		writeServiceError(w, err, "creating recipe")
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (handler *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.RecipeInput
	if !decodeJSON(w, r, &input) {
		return
	}

	recipe, err := handler.recipeService.Update(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err, "updating recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (handler *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := handler.recipeService.Delete(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "deleting recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *RecipeHandler) SearchIngredients(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ingredients, err := handler.recipeService.SearchIngredients(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, err, "searching ingredients")
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}
