package services

import (
	"fmt"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/shopspring/decimal"
)

// Keying selects how ConsolidateRecipes groups ingredient lines.
type Keying int

const (
	// KeyByIngredientAndUnit merges lines whose ingredient and unit both match.
	KeyByIngredientAndUnit Keying = iota
	// KeyByIngredient seeds one accumulator per ingredient from its first line. Later
	// lines in the same unit add to it; lines in any other unit are emitted as
	// standalone items and never aggregated.
	KeyByIngredient
)

func ParseKeying(value string) (Keying, error) {
	switch value {
	case "", "compound":
		return KeyByIngredientAndUnit, nil
	case "ingredient":
		return KeyByIngredient, nil
	}
	return 0, fmt.Errorf("unknown keying %q", value)
}

func itemKey(ingredientID string, unit string) string {
	return ingredientID + "\x00" + unit
}

// accumulator collects items in first-seen order under a string key.
type accumulator struct {
	index map[string]int
	items []models.ShoppingListItem
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (acc *accumulator) add(key string, item models.ShoppingListItem) {
	if position, ok := acc.index[key]; ok {
		existing := &acc.items[position]
		existing.Quantity = existing.Quantity.Add(item.Quantity)
		existing.SourceRecipeID = item.SourceRecipeID
		return
	}
	acc.index[key] = len(acc.items)
	acc.items = append(acc.items, item)
}

func itemFromLine(recipeID string, line models.RecipeIngredient, quantity decimal.Decimal) models.ShoppingListItem {
	ingredientID := line.IngredientID
	sourceRecipeID := recipeID
	return models.ShoppingListItem{
		IngredientID:   &ingredientID,
		IngredientName: line.IngredientName,
		Quantity:       quantity,
		Unit:           string(line.Unit),
		SourceRecipeID: &sourceRecipeID,
	}
}

// ConsolidateRecipes merges the ingredient lines of recipes, each counted once. An
// item's SourceRecipeID is the last recipe that contributed to it.
func ConsolidateRecipes(recipes []models.Recipe, keying Keying) []models.ShoppingListItem {
	acc := newAccumulator()
	var standalone []models.ShoppingListItem

	for _, recipe := range recipes {
		for _, line := range recipe.Ingredients {
			item := itemFromLine(recipe.ID, line, line.Quantity)

			if keying == KeyByIngredientAndUnit {
				acc.add(itemKey(line.IngredientID, string(line.Unit)), item)
				continue
			}

			position, seen := acc.index[line.IngredientID]
			if seen && acc.items[position].Unit != item.Unit {
				standalone = append(standalone, item)
				continue
			}
			acc.add(line.IngredientID, item)
		}
	}

	items := append(acc.items, standalone...)
	if items == nil {
		return []models.ShoppingListItem{}
	}
	return items
}

// RecipeOccurrences counts how many slots of plan reference each recipe. ids holds
// the distinct recipe ids in order of first appearance; slots without a recipe are
// skipped.
func RecipeOccurrences(plan models.MealPlan) (ids []string, counts map[string]int) {
	counts = make(map[string]int)
	for _, slot := range plan.Slots {
		if slot.RecipeID == nil || *slot.RecipeID == "" {
			continue
		}
		if counts[*slot.RecipeID] == 0 {
			ids = append(ids, *slot.RecipeID)
		}
		counts[*slot.RecipeID]++
	}
	return ids, counts
}

// ConsolidateMealPlan merges the ingredients of every recipe planned in plan, weighting
// each recipe by the number of slots that reference it. Lines always merge on
// ingredient and unit together. recipes must hold every referenced recipe.
func ConsolidateMealPlan(plan models.MealPlan, recipes map[string]models.Recipe) ([]models.ShoppingListItem, error) {
	ids, counts := RecipeOccurrences(plan)
	acc := newAccumulator()

	for _, id := range ids {
		recipe, ok := recipes[id]
		if !ok {
			return nil, fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		weight := decimal.NewFromInt(int64(counts[id]))
		for _, line := range recipe.Ingredients {
			item := itemFromLine(recipe.ID, line, line.Quantity.Mul(weight))
			acc.add(itemKey(line.IngredientID, string(line.Unit)), item)
		}
	}

	if acc.items == nil {
		return []models.ShoppingListItem{}, nil
	}
	return acc.items, nil
}

// MergeIntoList folds items into list. An item whose ingredient and unit match an
// existing ingredient-backed item adds its quantity to that item; everything else is
// appended. Custom-name items on the list are never merge targets. Recipe ids not
// already referenced are appended in order.
func MergeIntoList(list models.ShoppingList, items []models.ShoppingListItem, recipeIDs []string) models.ShoppingList {
	merged := make([]models.ShoppingListItem, len(list.Items), len(list.Items)+len(items))
	copy(merged, list.Items)

	existing := make(map[string]int, len(merged))
	for position, item := range merged {
		if item.IngredientID == nil {
			continue
		}
		key := itemKey(*item.IngredientID, item.Unit)
		if _, ok := existing[key]; !ok {
			existing[key] = position
		}
	}

	for _, item := range items {
		if item.IngredientID != nil {
			if position, ok := existing[itemKey(*item.IngredientID, item.Unit)]; ok {
				target := &merged[position]
				target.Quantity = target.Quantity.Add(item.Quantity)
				if item.SourceRecipeID != nil {
					target.SourceRecipeID = item.SourceRecipeID
				}
				continue
			}
		}
		merged = append(merged, item)
	}

	referenced := make(map[string]bool, len(list.RecipeIDs))
	mergedRecipeIDs := append([]string{}, list.RecipeIDs...)
	for _, id := range list.RecipeIDs {
		referenced[id] = true
	}
	for _, id := range recipeIDs {
		if !referenced[id] {
			referenced[id] = true
			mergedRecipeIDs = append(mergedRecipeIDs, id)
		}
	}

	list.Items = merged
	list.RecipeIDs = mergedRecipeIDs
	return list
}
