package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Quantities travel as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type User struct {
	ID          string    `json:"id"`
	OIDCSubject string    `json:"-"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatarUrl"`
	HouseholdID *string   `json:"householdId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Household struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedByUserID string    `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type APIToken struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TokenHash       string     `json:"-"`
	CreatedByUserID string     `json:"createdByUserId"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Unit string

const (
	UnitTeaspoon   Unit = "tsp"
	UnitTablespoon Unit = "tbsp"
	UnitCup        Unit = "cup"
	UnitOunce      Unit = "oz"
	UnitPound      Unit = "lb"
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMilliliter Unit = "ml"
	UnitLiter      Unit = "l"
	UnitPinch      Unit = "pinch"
	UnitWhole      Unit = "whole"
	UnitSlice      Unit = "slice"
	UnitClove      Unit = "clove"
)

var Units = []Unit{
	UnitTeaspoon, UnitTablespoon, UnitCup, UnitOunce, UnitPound, UnitGram, UnitKilogram,
	UnitMilliliter, UnitLiter, UnitPinch, UnitWhole, UnitSlice, UnitClove,
}

func (unit Unit) Valid() bool {
	for _, known := range Units {
		if unit == known {
			return true
		}
	}
	return false
}

type Ingredient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type RecipeIngredient struct {
	IngredientID   string          `json:"ingredientId"`
	IngredientName string          `json:"ingredientName"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           Unit            `json:"unit"`
}

type Recipe struct {
	ID              string             `json:"id"`
	HouseholdID     string             `json:"householdId"`
	Title           string             `json:"title"`
	Instructions    string             `json:"instructions"`
	Ingredients     []RecipeIngredient `json:"ingredients"`
	Servings        *int               `json:"servings"`
	PrepTime        *string            `json:"prepTime"`
	CookTime        *string            `json:"cookTime"`
	SourceURL       *string            `json:"sourceUrl"`
	IsPrivate       bool               `json:"isPrivate"`
	CreatedByUserID string             `json:"createdByUserId"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

func (mealType MealType) Valid() bool {
	switch mealType {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

type MealPlan struct {
	ID              string     `json:"id"`
	HouseholdID     string     `json:"householdId"`
	Name            string     `json:"name"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	Slots           []MealSlot `json:"slots"`
	CreatedByUserID string     `json:"createdByUserId"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type MealSlot struct {
	ID         string    `json:"id"`
	MealPlanID string    `json:"mealPlanId"`
	Date       string    `json:"date"`
	MealType   MealType  `json:"mealType"`
	RecipeID   *string   `json:"recipeId"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ShoppingListItem references either a registry ingredient or a free-text custom name,
// never both.
type ShoppingListItem struct {
	ID             string          `json:"id"`
	IngredientID   *string         `json:"ingredientId"`
	IngredientName string          `json:"ingredientName,omitempty"`
	CustomName     *string         `json:"customName"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	Purchased      bool            `json:"purchased"`
	SourceRecipeID *string         `json:"sourceRecipeId"`
	AddedManually  bool            `json:"addedManually"`
}

type ShoppingList struct {
	ID              string             `json:"id"`
	HouseholdID     string             `json:"householdId"`
	Name            string             `json:"name"`
	Items           []ShoppingListItem `json:"items"`
	RecipeIDs       []string           `json:"recipeIds"`
	IsActive        bool               `json:"isActive"`
	Version         int                `json:"version"`
	CreatedByUserID string             `json:"createdByUserId"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}
