package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/shopspring/decimal"
)

type IngredientLineInput struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     models.Unit     `json:"unit"`
}

type RecipeInput struct {
	Title        string                `json:"title"`
	Instructions string                `json:"instructions"`
	Ingredients  []IngredientLineInput `json:"ingredients"`
	Servings     *int                  `json:"servings"`
	PrepTime     *string               `json:"prepTime"`
	CookTime     *string               `json:"cookTime"`
	SourceURL    *string               `json:"sourceUrl"`
	IsPrivate    bool                  `json:"isPrivate"`
}

type RecipeService struct {
	recipeRepo     repository.RecipeRepository
	ingredientRepo repository.IngredientRepository
}

func NewRecipeService(recipeRepo repository.RecipeRepository, ingredientRepo repository.IngredientRepository) *RecipeService {
	return &RecipeService{recipeRepo: recipeRepo, ingredientRepo: ingredientRepo}
}

// canView reports whether a household may read recipe.
func canView(recipe models.Recipe, householdID string) bool {
	return recipe.HouseholdID == householdID || !recipe.IsPrivate
}

func (service *RecipeService) List(ctx context.Context, user models.User) ([]models.Recipe, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return nil, err
	}
	recipes, err := service.recipeRepo.FindVisible(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	return recipes, nil
}

func (service *RecipeService) Get(ctx context.Context, user models.User, id string) (models.Recipe, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.Recipe{}, err
	}
	recipe, err := service.recipeRepo.FindByID(ctx, id)
	if err != nil {
		return models.Recipe{}, notFoundOr(err, "recipe "+id)
	}
	if !canView(recipe, householdID) {
		return models.Recipe{}, fmt.Errorf("recipe %s: %w", id, ErrForbidden)
	}
	return recipe, nil
}

func (service *RecipeService) Create(ctx context.Context, user models.User, input RecipeInput) (models.Recipe, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.Recipe{}, err
	}
	lines, err := service.resolve(ctx, input)
	if err != nil {
		return models.Recipe{}, err
	}

	recipe := applyInput(models.Recipe{HouseholdID: householdID, CreatedByUserID: user.ID}, input)
	recipe.Ingredients = lines
	return service.recipeRepo.Create(ctx, recipe)
}

func (service *RecipeService) Update(ctx context.Context, user models.User, id string, input RecipeInput) (models.Recipe, error) {
	existing, err := service.owned(ctx, user, id)
	if err != nil {
		return models.Recipe{}, err
	}
	lines, err := service.resolve(ctx, input)
	if err != nil {
		return models.Recipe{}, err
	}

	recipe := applyInput(existing, input)
	recipe.Ingredients = lines
	if err := service.recipeRepo.Update(ctx, recipe); err != nil {
		return models.Recipe{}, notFoundOr(err, "recipe "+id)
	}
	return service.recipeRepo.FindByID(ctx, id)
}

func (service *RecipeService) Delete(ctx context.Context, user models.User, id string) error {
	if _, err := service.owned(ctx, user, id); err != nil {
		return err
	}
	if err := service.recipeRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "recipe "+id)
	}
	return nil
}

func (service *RecipeService) SearchIngredients(ctx context.Context, prefix string, limit int) ([]models.Ingredient, error) {
	ingredients, err := service.ingredientRepo.Search(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	return ingredients, nil
}

// owned loads a recipe the user's household may modify.
func (service *RecipeService) owned(ctx context.Context, user models.User, id string) (models.Recipe, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.Recipe{}, err
	}
	recipe, err := service.recipeRepo.FindByID(ctx, id)
	if err != nil {
		return models.Recipe{}, notFoundOr(err, "recipe "+id)
	}
	if recipe.HouseholdID != householdID {
		return models.Recipe{}, fmt.Errorf("recipe %s: %w", id, ErrForbidden)
	}
	return recipe, nil
}

// resolve validates every line before touching the ingredient registry.
func (service *RecipeService) resolve(ctx context.Context, input RecipeInput) ([]models.RecipeIngredient, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalid("title", "is required")
	}
	for i, line := range input.Ingredients {
		field := fmt.Sprintf("ingredients[%d]", i)
		if repository.NormalizeIngredientName(line.Name) == "" {
			return nil, invalid(field+".name", "is required")
		}
		if err := checkQuantity(field+".quantity", line.Quantity); err != nil {
			return nil, err
		}
		if !line.Unit.Valid() {
			return nil, invalid(field+".unit", "unknown unit %q", line.Unit)
		}
	}

	lines := make([]models.RecipeIngredient, 0, len(input.Ingredients))
	for _, line := range input.Ingredients {
		ingredient, err := service.ingredientRepo.FindOrCreate(ctx, line.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.RecipeIngredient{
			IngredientID:   ingredient.ID,
			IngredientName: ingredient.Name,
			Quantity:       line.Quantity,
			Unit:           line.Unit,
		})
	}
	return lines, nil
}

func applyInput(recipe models.Recipe, input RecipeInput) models.Recipe {
	recipe.Title = strings.TrimSpace(input.Title)
	recipe.Instructions = input.Instructions
	recipe.Servings = input.Servings
	recipe.PrepTime = input.PrepTime
	recipe.CookTime = input.CookTime
	recipe.SourceURL = input.SourceURL
	recipe.IsPrivate = input.IsPrivate
	return recipe
}
