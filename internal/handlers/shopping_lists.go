package handlers

import (
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/services"
	"github.com/go-chi/chi/v5"
)

type ShoppingListHandler struct {
	shoppingListService *services.ShoppingListService
}

func NewShoppingListHandler(shoppingListService *services.ShoppingListService) *ShoppingListHandler {
	return &ShoppingListHandler{shoppingListService: shoppingListService}
}

func (handler *ShoppingListHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lists, err := handler.shoppingListService.List(ctx, middleware.GetUser(ctx))
	if err != nil {
		writeServiceError(w, err, "listing shopping lists")
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (handler *ShoppingListHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := handler.shoppingListService.Get(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "loading shopping list")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (handler *ShoppingListHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.CreateShoppingListInput
	if !decodeJSON(w, r, &input) {
		return
	}

	list, err := handler.shoppingListService.Create(ctx, middleware.GetUser(ctx), input)
	if err != nil {
		writeServiceError(w, err, "creating shopping list")
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// GenerateFromMealPlan answers 201 when a list was created and 200 when the plan was
// merged into an existing one.
func (handler *ShoppingListHandler) GenerateFromMealPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.GenerateShoppingListInput
	if !decodeJSON(w, r, &input) {
		return
	}

	list, created, err := handler.shoppingListService.GenerateFromMealPlan(ctx, middleware.GetUser(ctx), input)
	if err != nil {
		writeServiceError(w, err, "generating shopping list")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, list)
}

func (handler *ShoppingListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := handler.shoppingListService.Delete(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "deleting shopping list")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *ShoppingListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input services.AddItemInput
	if !decodeJSON(w, r, &input) {
		return
	}

	item, err := handler.shoppingListService.AddItem(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err, "adding shopping list item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (handler *ShoppingListHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := handler.shoppingListService.RemoveItem(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err, "removing shopping list item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (handler *ShoppingListHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := handler.shoppingListService.ToggleItem(ctx, middleware.GetUser(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err, "toggling shopping list item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
