package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/bensuskins/family-kitchen/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

type shoppingFixture struct {
	db        *sql.DB
	lists     *ShoppingListService
	recipes   *RecipeService
	mealPlans *MealPlanService
	listRepo  repository.ShoppingListRepository
	alice     models.User
}

func newShoppingFixture(t *testing.T, options ShoppingListOptions) *shoppingFixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	recipeRepo := repository.NewRecipeRepository(db)
	ingredientRepo := repository.NewIngredientRepository(db)
	mealPlanRepo := repository.NewMealPlanRepository(db)
	listRepo := repository.NewShoppingListRepository(db)
	_, alice := testutil.NewHouseholdMember(t, db, "Alice")

	return &shoppingFixture{
		db:        db,
		lists:     NewShoppingListService(listRepo, recipeRepo, mealPlanRepo, ingredientRepo, options),
		recipes:   NewRecipeService(recipeRepo, ingredientRepo),
		mealPlans: NewMealPlanService(mealPlanRepo, recipeRepo),
		listRepo:  listRepo,
		alice:     alice,
	}
}

func (fixture *shoppingFixture) recipe(t *testing.T, title string, lines ...IngredientLineInput) models.Recipe {
	t.Helper()
	recipe, err := fixture.recipes.Create(context.Background(), fixture.alice, RecipeInput{Title: title, Ingredients: lines})
	if err != nil {
		t.Fatalf("creating recipe %q: %v", title, err)
	}
	return recipe
}

// plan creates a week starting 2024-03-04 with recipeIDs placed on consecutive dinners.
func (fixture *shoppingFixture) plan(t *testing.T, recipeIDs ...string) models.MealPlan {
	t.Helper()
	ctx := context.Background()
	plan, err := fixture.mealPlans.Create(ctx, fixture.alice, MealPlanInput{StartDate: "2024-03-04"})
	if err != nil {
		t.Fatalf("creating meal plan: %v", err)
	}
	dates := []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10"}
	for i, id := range recipeIDs {
		recipeID := id
		if _, err := fixture.mealPlans.SaveSlot(ctx, fixture.alice, plan.ID, MealSlotInput{
			Date: dates[i], MealType: models.MealTypeDinner, RecipeID: &recipeID,
		}); err != nil {
			t.Fatalf("saving slot: %v", err)
		}
	}
	return plan
}

func qty(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func flourAndEggs() []IngredientLineInput {
	return []IngredientLineInput{
		{Name: "flour", Quantity: qty("2"), Unit: models.UnitCup},
		{Name: "egg", Quantity: qty("1"), Unit: models.UnitWhole},
	}
}

func quantities(list models.ShoppingList) map[string]string {
	result := make(map[string]string)
	for _, item := range list.Items {
		name := item.IngredientName
		if item.CustomName != nil {
			name = "custom:" + *item.CustomName
		}
		result[name+" "+item.Unit] = item.Quantity.String()
	}
	return result
}

func TestShoppingListService_GenerateThenRegenerateDoubles(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{Locks: NewKeyedLocker()})
	ctx := context.Background()

	r1 := fixture.recipe(t, "R1", flourAndEggs()...)
	plan := fixture.plan(t, r1.ID, r1.ID)

	list, created, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if !created {
		t.Error("expected first generation to create a list")
	}
	if list.Name != "Shopping List for 2024-03-04" {
		t.Errorf("unexpected derived name %q", list.Name)
	}
	if diff := cmp.Diff(map[string]string{"flour cup": "4", "egg whole": "2"}, quantities(list)); diff != "" {
		t.Errorf("first generation mismatch (-want +got):\n%s", diff)
	}

	list, created, err = fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if created {
		t.Error("expected second generation to merge into the existing list")
	}
	if diff := cmp.Diff(map[string]string{"flour cup": "8", "egg whole": "4"}, quantities(list)); diff != "" {
		t.Errorf("second generation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{r1.ID}, list.RecipeIDs); diff != "" {
		t.Errorf("recipe ids mismatch (-want +got):\n%s", diff)
	}

	lists, _ := fixture.lists.List(ctx, fixture.alice)
	if len(lists) != 1 {
		t.Errorf("expected a single active list, got %d", len(lists))
	}
}

func TestShoppingListService_GenerateKeepsManualItemsIsolated(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{Locks: NewKeyedLocker()})
	ctx := context.Background()

	r1 := fixture.recipe(t, "R1", flourAndEggs()...)
	plan := fixture.plan(t, r1.ID)

	list, _, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if _, err := fixture.lists.AddItem(ctx, fixture.alice, list.ID, AddItemInput{CustomName: "flour", Quantity: qty("1"), Unit: "cup"}); err != nil {
		t.Fatalf("adding custom item: %v", err)
	}

	list, _, err = fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("regeneration: %v", err)
	}
	want := map[string]string{"flour cup": "4", "egg whole": "2", "custom:flour cup": "1"}
	if diff := cmp.Diff(want, quantities(list)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestShoppingListService_ConcurrentGenerationLosesNothing(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{Locks: NewKeyedLocker()})
	ctx := context.Background()

	r1 := fixture.recipe(t, "R1", flourAndEggs()...)
	plan := fixture.plan(t, r1.ID, r1.ID)

	const calls = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
			if err != nil {
				t.Errorf("generation: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("expected exactly one creation, got %d", createdCount)
	}
	lists, _ := fixture.lists.List(ctx, fixture.alice)
	if len(lists) != 1 {
		t.Fatalf("expected one list, got %d", len(lists))
	}
	if diff := cmp.Diff(map[string]string{"flour cup": "32", "egg whole": "16"}, quantities(lists[0])); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
	if lists[0].Version != calls {
		t.Errorf("expected version %d, got %d", calls, lists[0].Version)
	}
}

// racingListRepo mutates the list between the generation's read and its write.
type racingListRepo struct {
	repository.ShoppingListRepository
	once sync.Once
}

func (repo *racingListRepo) FindActiveByName(ctx context.Context, householdID string, name string) (models.ShoppingList, error) {
	list, err := repo.ShoppingListRepository.FindActiveByName(ctx, householdID, name)
	if err == nil && len(list.Items) > 0 {
		repo.once.Do(func() {
			_, err = repo.ShoppingListRepository.TogglePurchased(ctx, list.ID, list.Items[0].ID)
		})
	}
	return list, err
}

func TestShoppingListService_StaleMergeIsAConflict(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	r1 := fixture.recipe(t, "R1", flourAndEggs()...)
	plan := fixture.plan(t, r1.ID)

	first, _, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("generation: %v", err)
	}

	racing := NewShoppingListService(
		&racingListRepo{ShoppingListRepository: fixture.listRepo},
		repository.NewRecipeRepository(fixture.db),
		repository.NewMealPlanRepository(fixture.db),
		repository.NewIngredientRepository(fixture.db),
		ShoppingListOptions{},
	)
	_, _, err = racing.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	stored, _ := fixture.lists.Get(ctx, fixture.alice, first.ID)
	if diff := cmp.Diff(map[string]string{"flour cup": "2", "egg whole": "1"}, quantities(stored)); diff != "" {
		t.Errorf("expected quantities unchanged (-want +got):\n%s", diff)
	}
	if !stored.Items[0].Purchased {
		t.Error("expected the concurrent toggle to survive")
	}
}

// lateListRepo misses a list another writer created after the lookup.
type lateListRepo struct {
	repository.ShoppingListRepository
}

func (repo *lateListRepo) FindActiveByName(ctx context.Context, householdID string, name string) (models.ShoppingList, error) {
	return models.ShoppingList{}, sql.ErrNoRows
}

func TestShoppingListService_ConcurrentFirstGenerationIsAConflict(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	r1 := fixture.recipe(t, "R1", flourAndEggs()...)
	plan := fixture.plan(t, r1.ID)

	first, _, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID})
	if err != nil {
		t.Fatalf("generation: %v", err)
	}

	late := NewShoppingListService(
		&lateListRepo{ShoppingListRepository: fixture.listRepo},
		repository.NewRecipeRepository(fixture.db),
		repository.NewMealPlanRepository(fixture.db),
		repository.NewIngredientRepository(fixture.db),
		ShoppingListOptions{},
	)
	if _, _, err := late.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	lists, err := fixture.lists.List(ctx, fixture.alice)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(lists) != 1 || lists[0].ID != first.ID {
		t.Fatalf("expected only the first list to be active, got %+v", lists)
	}
	if diff := cmp.Diff(map[string]string{"flour cup": "2", "egg whole": "1"}, quantities(lists[0])); diff != "" {
		t.Errorf("expected quantities unchanged (-want +got):\n%s", diff)
	}
}

func TestShoppingListService_CreateRejectsDuplicateActiveName(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	list, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "Weekly"})
	if err != nil {
		t.Fatalf("creating list: %v", err)
	}
	if _, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: " Weekly "}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := fixture.lists.Delete(ctx, fixture.alice, list.ID); err != nil {
		t.Fatalf("deleting list: %v", err)
	}
	if _, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "Weekly"}); err != nil {
		t.Errorf("expected the name to be reusable after delete, got %v", err)
	}
}

func TestShoppingListService_CreateFromRecipes(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	a := fixture.recipe(t, "A", IngredientLineInput{Name: "flour", Quantity: qty("2"), Unit: models.UnitCup})
	b := fixture.recipe(t, "B",
		IngredientLineInput{Name: "flour", Quantity: qty("100"), Unit: models.UnitGram},
		IngredientLineInput{Name: "flour", Quantity: qty("1"), Unit: models.UnitCup},
	)

	list, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{
		Name:      "Party",
		RecipeIDs: []string{a.ID, b.ID, a.ID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"flour cup": "3", "flour g": "100"}, quantities(list)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{a.ID, b.ID}, list.RecipeIDs); diff != "" {
		t.Errorf("recipe ids mismatch (-want +got):\n%s", diff)
	}
	if list.Items[0].SourceRecipeID == nil || *list.Items[0].SourceRecipeID != b.ID {
		t.Errorf("expected last contributor %s as source", b.ID)
	}
}

func TestShoppingListService_CreateErrors(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	if _, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "x", RecipeIDs: []string{"missing"}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var validationErr *ValidationError
	if _, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: " "}); !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	_, bob := testutil.NewHouseholdMember(t, fixture.db, "Bob")
	secret, _ := fixture.recipes.Create(ctx, bob, RecipeInput{Title: "Secret", IsPrivate: true})
	if _, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "x", RecipeIDs: []string{secret.ID}}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another household's private recipe, got %v", err)
	}
}

func TestShoppingListService_GenerateErrors(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	if _, _, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	plan := fixture.plan(t)
	_, bob := testutil.NewHouseholdMember(t, fixture.db, "Bob")
	if _, _, err := fixture.lists.GenerateFromMealPlan(ctx, bob, GenerateShoppingListInput{MealPlanID: plan.ID}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another household's plan, got %v", err)
	}

	list, created, err := fixture.lists.GenerateFromMealPlan(ctx, fixture.alice, GenerateShoppingListInput{MealPlanID: plan.ID, Name: "Empty week"})
	if err != nil {
		t.Fatalf("generating from empty plan: %v", err)
	}
	if !created || list.Name != "Empty week" || len(list.Items) != 0 {
		t.Errorf("unexpected list from empty plan: %+v", list)
	}
}

func TestShoppingListService_AddItemValidation(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	list, err := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "Manual"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name  string
		input AddItemInput
		field string
	}{
		{"neither name", AddItemInput{Quantity: qty("1"), Unit: "cup"}, "item"},
		{"both names", AddItemInput{IngredientName: "milk", CustomName: "milk", Quantity: qty("1"), Unit: "l"}, "item"},
		{"zero quantity", AddItemInput{CustomName: "soap", Quantity: decimal.Zero}, "quantity"},
		{"huge exponent", AddItemInput{CustomName: "soap", Quantity: decimal.RequireFromString("1e2000000000")}, "quantity"},
		{"negative huge exponent", AddItemInput{CustomName: "soap", Quantity: decimal.RequireFromString("1e-2000000000")}, "quantity"},
		{"over the maximum", AddItemInput{CustomName: "soap", Quantity: qty("1000000.5")}, "quantity"},
		{"bad unit", AddItemInput{IngredientName: "milk", Quantity: qty("1"), Unit: "jug"}, "unit"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := fixture.lists.AddItem(ctx, fixture.alice, list.ID, test.input)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != test.field {
				t.Errorf("expected field %q, got %q", test.field, validationErr.Field)
			}
		})
	}

	item, err := fixture.lists.AddItem(ctx, fixture.alice, list.ID, AddItemInput{IngredientName: " Milk ", Quantity: qty("1"), Unit: "l"})
	if err != nil {
		t.Fatalf("adding ingredient item: %v", err)
	}
	if item.IngredientName != "milk" || !item.AddedManually {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestShoppingListService_ItemLifecycleAndSoftDelete(t *testing.T) {
	fixture := newShoppingFixture(t, ShoppingListOptions{})
	ctx := context.Background()

	list, _ := fixture.lists.Create(ctx, fixture.alice, CreateShoppingListInput{Name: "Weekly"})
	item, err := fixture.lists.AddItem(ctx, fixture.alice, list.ID, AddItemInput{CustomName: "soap", Quantity: qty("2")})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	toggled, err := fixture.lists.ToggleItem(ctx, fixture.alice, list.ID, item.ID)
	if err != nil {
		t.Fatalf("ToggleItem: %v", err)
	}
	if !toggled.Purchased {
		t.Error("expected purchased after toggle")
	}

	_, bob := testutil.NewHouseholdMember(t, fixture.db, "Bob")
	if err := fixture.lists.RemoveItem(ctx, bob, list.ID, item.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another household, got %v", err)
	}
	if err := fixture.lists.RemoveItem(ctx, fixture.alice, list.ID, item.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := fixture.lists.RemoveItem(ctx, fixture.alice, list.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}

	if err := fixture.lists.Delete(ctx, fixture.alice, list.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fixture.lists.Get(ctx, fixture.alice, list.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after soft delete, got %v", err)
	}
	stored, err := fixture.listRepo.FindByID(ctx, list.ID)
	if err != nil || stored.IsActive {
		t.Errorf("expected list row kept but inactive, got %+v, %v", stored, err)
	}
}
