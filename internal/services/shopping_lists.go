package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/shopspring/decimal"
)

const derivedListPrefix = "Shopping List for "

type CreateShoppingListInput struct {
	Name      string   `json:"name"`
	RecipeIDs []string `json:"recipeIds"`
}

type GenerateShoppingListInput struct {
	MealPlanID string `json:"mealPlanId"`
	Name       string `json:"name"`
}

// AddItemInput adds either a registry ingredient (IngredientName) or a free-text
// CustomName to a list.
type AddItemInput struct {
	IngredientName string          `json:"ingredientName"`
	CustomName     string          `json:"customName"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
}

type ShoppingListOptions struct {
	Keying Keying
	// Locks serializes generation per household and list name. Nil disables it and
	// leaves the version check as the only guard.
	Locks *KeyedLocker
}

type ShoppingListService struct {
	listRepo       repository.ShoppingListRepository
	recipeRepo     repository.RecipeRepository
	mealPlanRepo   repository.MealPlanRepository
	ingredientRepo repository.IngredientRepository
	keying         Keying
	locks          *KeyedLocker
}

func NewShoppingListService(
	listRepo repository.ShoppingListRepository,
	recipeRepo repository.RecipeRepository,
	mealPlanRepo repository.MealPlanRepository,
	ingredientRepo repository.IngredientRepository,
	options ShoppingListOptions,
) *ShoppingListService {
	return &ShoppingListService{
		listRepo:       listRepo,
		recipeRepo:     recipeRepo,
		mealPlanRepo:   mealPlanRepo,
		ingredientRepo: ingredientRepo,
		keying:         options.Keying,
		locks:          options.Locks,
	}
}

func DerivedListName(plan models.MealPlan) string {
	return derivedListPrefix + plan.StartDate
}

func (service *ShoppingListService) List(ctx context.Context, user models.User) ([]models.ShoppingList, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return nil, err
	}
	lists, err := service.listRepo.FindActiveByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if lists == nil {
		lists = []models.ShoppingList{}
	}
	return lists, nil
}

// Get returns an active list owned by the user's household. Soft-deleted lists are
// reported as not found.
func (service *ShoppingListService) Get(ctx context.Context, user models.User, id string) (models.ShoppingList, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.ShoppingList{}, err
	}
	list, err := service.listRepo.FindByID(ctx, id)
	if err != nil {
		return models.ShoppingList{}, notFoundOr(err, "shopping list "+id)
	}
	if list.HouseholdID != householdID {
		return models.ShoppingList{}, fmt.Errorf("shopping list %s: %w", id, ErrForbidden)
	}
	if !list.IsActive {
		return models.ShoppingList{}, fmt.Errorf("shopping list %s: %w", id, ErrNotFound)
	}
	return list, nil
}

// Create builds a list from a set of recipes, each counted once.
func (service *ShoppingListService) Create(ctx context.Context, user models.User, input CreateShoppingListInput) (models.ShoppingList, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.ShoppingList{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.ShoppingList{}, invalid("name", "is required")
	}

	ids := distinct(input.RecipeIDs)
	recipes, err := service.visibleRecipes(ctx, householdID, ids)
	if err != nil {
		return models.ShoppingList{}, err
	}

	ordered := make([]models.Recipe, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, recipes[id])
	}

	list, err := service.listRepo.Create(ctx, models.ShoppingList{
		HouseholdID:     householdID,
		Name:            name,
		Items:           ConsolidateRecipes(ordered, service.keying),
		RecipeIDs:       ids,
		CreatedByUserID: user.ID,
	})
	if errors.Is(err, repository.ErrDuplicateName) {
		return models.ShoppingList{}, fmt.Errorf("shopping list %q: %w", name, ErrConflict)
	}
	return list, err
}

// GenerateFromMealPlan consolidates plan into the household's active list with the
// requested or derived name. created reports whether a new list was made; otherwise the
// items were merged into the existing list and quantities accumulate on every call.
func (service *ShoppingListService) GenerateFromMealPlan(ctx context.Context, user models.User, input GenerateShoppingListInput) (list models.ShoppingList, created bool, err error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.ShoppingList{}, false, err
	}
	if strings.TrimSpace(input.MealPlanID) == "" {
		return models.ShoppingList{}, false, invalid("mealPlanId", "is required")
	}

	plan, err := service.mealPlanRepo.FindByID(ctx, input.MealPlanID)
	if err != nil {
		return models.ShoppingList{}, false, notFoundOr(err, "meal plan "+input.MealPlanID)
	}
	if plan.HouseholdID != householdID {
		return models.ShoppingList{}, false, fmt.Errorf("meal plan %s: %w", plan.ID, ErrForbidden)
	}

	recipeIDs, _ := RecipeOccurrences(plan)
	recipes, err := service.visibleRecipes(ctx, householdID, recipeIDs)
	if err != nil {
		return models.ShoppingList{}, false, err
	}
	items, err := ConsolidateMealPlan(plan, recipes)
	if err != nil {
		return models.ShoppingList{}, false, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = DerivedListName(plan)
	}

	if service.locks != nil {
		unlock := service.locks.Lock(householdID + "\x00" + name)
		defer unlock()
	}

	existing, err := service.listRepo.FindActiveByName(ctx, householdID, name)
	if errors.Is(err, sql.ErrNoRows) {
		list, err = service.listRepo.Create(ctx, models.ShoppingList{
			HouseholdID:     householdID,
			Name:            name,
			Items:           items,
			RecipeIDs:       recipeIDs,
			CreatedByUserID: user.ID,
		})
		if errors.Is(err, repository.ErrDuplicateName) {
			return models.ShoppingList{}, false, fmt.Errorf("shopping list %q was created during generation: %w", name, ErrConflict)
		}
		if err != nil {
			return models.ShoppingList{}, false, err
		}
		slog.Info("generated shopping list", "list", list.ID, "mealPlan", plan.ID, "items", len(list.Items))
		return list, true, nil
	}
	if err != nil {
		return models.ShoppingList{}, false, fmt.Errorf("finding shopping list %q: %w", name, err)
	}

	list, err = service.listRepo.Save(ctx, MergeIntoList(existing, items, recipeIDs))
	if errors.Is(err, repository.ErrStaleVersion) {
		return models.ShoppingList{}, false, fmt.Errorf("shopping list %s changed during generation: %w", existing.ID, ErrConflict)
	}
	if err != nil {
		return models.ShoppingList{}, false, err
	}
	slog.Info("merged meal plan into shopping list", "list", list.ID, "mealPlan", plan.ID, "version", list.Version)
	return list, false, nil
}

func (service *ShoppingListService) Delete(ctx context.Context, user models.User, id string) error {
	if _, err := service.Get(ctx, user, id); err != nil {
		return err
	}
	if err := service.listRepo.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "shopping list "+id)
	}
	return nil
}

func (service *ShoppingListService) AddItem(ctx context.Context, user models.User, listID string, input AddItemInput) (models.ShoppingListItem, error) {
	if _, err := service.Get(ctx, user, listID); err != nil {
		return models.ShoppingListItem{}, err
	}

	ingredientName := repository.NormalizeIngredientName(input.IngredientName)
	customName := strings.TrimSpace(input.CustomName)
	if (ingredientName == "") == (customName == "") {
		return models.ShoppingListItem{}, invalid("item", "exactly one of ingredientName or customName is required")
	}
	if err := checkQuantity("quantity", input.Quantity); err != nil {
		return models.ShoppingListItem{}, err
	}

	unit := strings.TrimSpace(input.Unit)
	item := models.ShoppingListItem{
		Quantity:      input.Quantity,
		Unit:          unit,
		AddedManually: true,
	}

	if customName != "" {
		item.CustomName = &customName
	} else {
		if !models.Unit(unit).Valid() {
			return models.ShoppingListItem{}, invalid("unit", "unknown unit %q", unit)
		}
		ingredient, err := service.ingredientRepo.FindOrCreate(ctx, ingredientName)
		if err != nil {
			return models.ShoppingListItem{}, err
		}
		item.IngredientID = &ingredient.ID
		item.IngredientName = ingredient.Name
	}

	added, err := service.listRepo.AddItem(ctx, listID, item)
	if err != nil {
		return models.ShoppingListItem{}, notFoundOr(err, "shopping list "+listID)
	}
	return added, nil
}

func (service *ShoppingListService) RemoveItem(ctx context.Context, user models.User, listID string, itemID string) error {
	if _, err := service.Get(ctx, user, listID); err != nil {
		return err
	}
	if err := service.listRepo.RemoveItem(ctx, listID, itemID); err != nil {
		return notFoundOr(err, "shopping list item "+itemID)
	}
	return nil
}

func (service *ShoppingListService) ToggleItem(ctx context.Context, user models.User, listID string, itemID string) (models.ShoppingListItem, error) {
	if _, err := service.Get(ctx, user, listID); err != nil {
		return models.ShoppingListItem{}, err
	}
	item, err := service.listRepo.TogglePurchased(ctx, listID, itemID)
	if err != nil {
		return models.ShoppingListItem{}, notFoundOr(err, "shopping list item "+itemID)
	}
	return item, nil
}

// visibleRecipes loads ids, failing on the first one that is missing or private to
// another household.
func (service *ShoppingListService) visibleRecipes(ctx context.Context, householdID string, ids []string) (map[string]models.Recipe, error) {
	recipes, err := service.recipeRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		recipe, ok := recipes[id]
		if !ok {
			return nil, fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		if !canView(recipe, householdID) {
			return nil, fmt.Errorf("recipe %s: %w", id, ErrForbidden)
		}
	}
	return recipes, nil
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}
