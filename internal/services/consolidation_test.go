package services

import (
	"errors"
	"testing"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func ingredientLine(id string, quantity string, unit models.Unit) models.RecipeIngredient {
	return models.RecipeIngredient{
		IngredientID:   id,
		IngredientName: id,
		Quantity:       decimal.RequireFromString(quantity),
		Unit:           unit,
	}
}

func testRecipe(id string, lines ...models.RecipeIngredient) models.Recipe {
	return models.Recipe{ID: id, Title: id, Ingredients: lines}
}

func strPtr(s string) *string {
	return &s
}

// summary is the comparable shape of an item.
type summary struct {
	Ingredient string
	Custom     string
	Quantity   string
	Unit       string
	Source     string
}

func summarize(items []models.ShoppingListItem) []summary {
	result := make([]summary, 0, len(items))
	for _, item := range items {
		s := summary{Quantity: item.Quantity.String(), Unit: item.Unit}
		if item.IngredientID != nil {
			s.Ingredient = *item.IngredientID
		}
		if item.CustomName != nil {
			s.Custom = *item.CustomName
		}
		if item.SourceRecipeID != nil {
			s.Source = *item.SourceRecipeID
		}
		result = append(result, s)
	}
	return result
}

func planWith(slots ...*string) models.MealPlan {
	plan := models.MealPlan{ID: "plan", StartDate: "2024-03-04"}
	for i, recipeID := range slots {
		plan.Slots = append(plan.Slots, models.MealSlot{
			ID:       string(rune('a' + i)),
			Date:     "2024-03-04",
			MealType: models.MealTypeDinner,
			RecipeID: recipeID,
		})
	}
	return plan
}

func TestConsolidateRecipes_CompoundKeying(t *testing.T) {
	recipes := []models.Recipe{
		testRecipe("a", ingredientLine("flour", "2", models.UnitCup), ingredientLine("egg", "1", models.UnitWhole)),
		testRecipe("b", ingredientLine("flour", "100", models.UnitGram), ingredientLine("flour", "0.5", models.UnitCup)),
	}

	got := summarize(ConsolidateRecipes(recipes, KeyByIngredientAndUnit))
	want := []summary{
		{Ingredient: "flour", Quantity: "2.5", Unit: "cup", Source: "b"},
		{Ingredient: "egg", Quantity: "1", Unit: "whole", Source: "a"},
		{Ingredient: "flour", Quantity: "100", Unit: "g", Source: "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ConsolidateRecipes mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidateRecipes_IngredientKeying(t *testing.T) {
	recipes := []models.Recipe{
		testRecipe("a", ingredientLine("flour", "2", models.UnitCup)),
		testRecipe("b", ingredientLine("flour", "100", models.UnitGram), ingredientLine("sugar", "1", models.UnitTablespoon)),
		testRecipe("c", ingredientLine("flour", "1", models.UnitCup), ingredientLine("flour", "50", models.UnitGram)),
	}

	got := summarize(ConsolidateRecipes(recipes, KeyByIngredient))
	want := []summary{
		{Ingredient: "flour", Quantity: "3", Unit: "cup", Source: "c"},
		{Ingredient: "sugar", Quantity: "1", Unit: "tbsp", Source: "b"},
		{Ingredient: "flour", Quantity: "100", Unit: "g", Source: "b"},
		{Ingredient: "flour", Quantity: "50", Unit: "g", Source: "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ConsolidateRecipes mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidateRecipes_NeverMergesAcrossUnits(t *testing.T) {
	recipes := []models.Recipe{
		testRecipe("a", ingredientLine("flour", "2", models.UnitCup)),
		testRecipe("b", ingredientLine("flour", "100", models.UnitGram)),
	}

	for _, keying := range []Keying{KeyByIngredientAndUnit, KeyByIngredient} {
		items := ConsolidateRecipes(recipes, keying)
		if len(items) != 2 {
			t.Fatalf("keying %d: expected 2 distinct items, got %d", keying, len(items))
		}
		if items[0].Unit == items[1].Unit {
			t.Errorf("keying %d: expected different units, got %q twice", keying, items[0].Unit)
		}
	}
}

func TestConsolidateRecipes_Empty(t *testing.T) {
	items := ConsolidateRecipes(nil, KeyByIngredientAndUnit)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestParseKeying(t *testing.T) {
	if keying, err := ParseKeying("ingredient"); err != nil || keying != KeyByIngredient {
		t.Errorf("ParseKeying(ingredient) = %v, %v", keying, err)
	}
	if keying, err := ParseKeying(""); err != nil || keying != KeyByIngredientAndUnit {
		t.Errorf("ParseKeying(\"\") = %v, %v", keying, err)
	}
	if _, err := ParseKeying("weird"); err == nil {
		t.Error("expected error for unknown keying")
	}
}

func TestRecipeOccurrences(t *testing.T) {
	plan := planWith(strPtr("a"), nil, strPtr("b"), strPtr("a"), strPtr(""))

	ids, counts := RecipeOccurrences(plan)
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if counts["a"] != 2 || counts["b"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestConsolidateMealPlan_FlourAndEggs(t *testing.T) {
	r1 := testRecipe("r1", ingredientLine("flour", "2", models.UnitCup), ingredientLine("egg", "1", models.UnitWhole))
	plan := planWith(strPtr("r1"), strPtr("r1"))

	items, err := ConsolidateMealPlan(plan, map[string]models.Recipe{"r1": r1})
	if err != nil {
		t.Fatalf("ConsolidateMealPlan: %v", err)
	}
	want := []summary{
		{Ingredient: "flour", Quantity: "4", Unit: "cup", Source: "r1"},
		{Ingredient: "egg", Quantity: "2", Unit: "whole", Source: "r1"},
	}
	if diff := cmp.Diff(want, summarize(items)); diff != "" {
		t.Fatalf("first generation mismatch (-want +got):\n%s", diff)
	}

	list := models.ShoppingList{Items: items, RecipeIDs: []string{"r1"}}
	again, _ := ConsolidateMealPlan(plan, map[string]models.Recipe{"r1": r1})
	merged := MergeIntoList(list, again, []string{"r1"})

	want = []summary{
		{Ingredient: "flour", Quantity: "8", Unit: "cup", Source: "r1"},
		{Ingredient: "egg", Quantity: "4", Unit: "whole", Source: "r1"},
	}
	if diff := cmp.Diff(want, summarize(merged.Items)); diff != "" {
		t.Errorf("regeneration mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"r1"}, merged.RecipeIDs); diff != "" {
		t.Errorf("recipe ids mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidateMealPlan_OccurrenceWeighting(t *testing.T) {
	soup := testRecipe("soup", ingredientLine("onion", "1.5", models.UnitWhole))

	once, _ := ConsolidateMealPlan(planWith(strPtr("soup")), map[string]models.Recipe{"soup": soup})
	thrice, _ := ConsolidateMealPlan(planWith(strPtr("soup"), strPtr("soup"), strPtr("soup")), map[string]models.Recipe{"soup": soup})

	if len(once) != 1 || len(thrice) != 1 {
		t.Fatalf("expected one item each, got %d and %d", len(once), len(thrice))
	}
	if !thrice[0].Quantity.Equal(once[0].Quantity.Mul(decimal.NewFromInt(3))) {
		t.Errorf("expected 3x %s, got %s", once[0].Quantity, thrice[0].Quantity)
	}
}

func TestConsolidateMealPlan_SumPreservation(t *testing.T) {
	recipes := map[string]models.Recipe{
		"a": testRecipe("a", ingredientLine("butter", "0.25", models.UnitCup), ingredientLine("salt", "1", models.UnitPinch)),
		"b": testRecipe("b", ingredientLine("butter", "0.5", models.UnitCup), ingredientLine("butter", "30", models.UnitGram)),
		"c": testRecipe("c", ingredientLine("salt", "2", models.UnitPinch)),
	}
	plan := planWith(strPtr("a"), strPtr("b"), strPtr("c"), strPtr("a"), strPtr("b"), strPtr("a"))

	items, err := ConsolidateMealPlan(plan, recipes)
	if err != nil {
		t.Fatalf("ConsolidateMealPlan: %v", err)
	}

	expected := map[string]decimal.Decimal{}
	for _, slot := range plan.Slots {
		for _, line := range recipes[*slot.RecipeID].Ingredients {
			key := itemKey(line.IngredientID, string(line.Unit))
			expected[key] = expected[key].Add(line.Quantity)
		}
	}

	got := map[string]decimal.Decimal{}
	for _, item := range items {
		key := itemKey(*item.IngredientID, item.Unit)
		if _, dup := got[key]; dup {
			t.Errorf("duplicate item for %q", key)
		}
		got[key] = item.Quantity
	}
	if diff := cmp.Diff(expected, got, decimalComparer); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidateMealPlan_SkipsEmptySlots(t *testing.T) {
	items, err := ConsolidateMealPlan(planWith(nil, nil), nil)
	if err != nil {
		t.Fatalf("ConsolidateMealPlan: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestConsolidateMealPlan_MissingRecipe(t *testing.T) {
	_, err := ConsolidateMealPlan(planWith(strPtr("gone")), map[string]models.Recipe{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMergeIntoList_CustomItemsStayIsolated(t *testing.T) {
	list := models.ShoppingList{
		Items: []models.ShoppingListItem{
			{CustomName: strPtr("flour"), Quantity: decimal.NewFromInt(1), Unit: "cup", AddedManually: true},
			{IngredientID: strPtr("milk"), Quantity: decimal.NewFromInt(1), Unit: "l", Purchased: true},
		},
		RecipeIDs: []string{"old"},
	}
	items := []models.ShoppingListItem{
		{IngredientID: strPtr("flour"), Quantity: decimal.NewFromInt(2), Unit: "cup", SourceRecipeID: strPtr("new")},
		{IngredientID: strPtr("milk"), Quantity: decimal.NewFromInt(2), Unit: "l", SourceRecipeID: strPtr("new")},
		{IngredientID: strPtr("milk"), Quantity: decimal.NewFromInt(200), Unit: "ml", SourceRecipeID: strPtr("new")},
	}

	merged := MergeIntoList(list, items, []string{"new", "old"})

	want := []summary{
		{Custom: "flour", Quantity: "1", Unit: "cup"},
		{Ingredient: "milk", Quantity: "3", Unit: "l", Source: "new"},
		{Ingredient: "flour", Quantity: "2", Unit: "cup", Source: "new"},
		{Ingredient: "milk", Quantity: "200", Unit: "ml", Source: "new"},
	}
	if diff := cmp.Diff(want, summarize(merged.Items)); diff != "" {
		t.Errorf("merged items mismatch (-want +got):\n%s", diff)
	}
	if !merged.Items[1].Purchased {
		t.Error("expected purchased flag to survive the merge")
	}
	if diff := cmp.Diff([]string{"old", "new"}, merged.RecipeIDs); diff != "" {
		t.Errorf("recipe ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIntoList_DoesNotMutateInput(t *testing.T) {
	list := models.ShoppingList{
		Items: []models.ShoppingListItem{{IngredientID: strPtr("egg"), Quantity: decimal.NewFromInt(2), Unit: "whole"}},
	}
	MergeIntoList(list, []models.ShoppingListItem{{IngredientID: strPtr("egg"), Quantity: decimal.NewFromInt(2), Unit: "whole"}}, nil)

	if !list.Items[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected original list untouched, got %s", list.Items[0].Quantity)
	}
}
