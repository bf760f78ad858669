package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/google/uuid"
)

type RecipeRepository interface {
	FindByID(ctx context.Context, id string) (models.Recipe, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Recipe, error)
	FindVisible(ctx context.Context, householdID string) ([]models.Recipe, error)
	Create(ctx context.Context, recipe models.Recipe) (models.Recipe, error)
	Update(ctx context.Context, recipe models.Recipe) error
	Delete(ctx context.Context, id string) error
}

type SQLiteRecipeRepository struct {
	database *sql.DB
}

func NewRecipeRepository(database *sql.DB) *SQLiteRecipeRepository {
	return &SQLiteRecipeRepository{database: database}
}

const recipeColumns = `id, household_id, title, instructions, servings, prep_time, cook_time,
	source_url, is_private, created_by_user_id, created_at, updated_at`

func scanRecipe(row rowScanner) (models.Recipe, error) {
	var recipe models.Recipe
	err := row.Scan(
		&recipe.ID, &recipe.HouseholdID, &recipe.Title, &recipe.Instructions,
		&recipe.Servings, &recipe.PrepTime, &recipe.CookTime,
		&recipe.SourceURL, &recipe.IsPrivate, &recipe.CreatedByUserID,
		&recipe.CreatedAt, &recipe.UpdatedAt,
	)
	return recipe, err
}

func (repository *SQLiteRecipeRepository) FindByID(ctx context.Context, id string) (models.Recipe, error) {
	recipe, err := scanRecipe(repository.database.QueryRowContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes WHERE id = ?", id,
	))
	if err != nil {
		return models.Recipe{}, fmt.Errorf("finding recipe by id: %w", err)
	}

	lines, err := repository.loadIngredients(ctx, []string{id})
	if err != nil {
		return models.Recipe{}, err
	}
	recipe.Ingredients = lines[id]
	if recipe.Ingredients == nil {
		recipe.Ingredients = []models.RecipeIngredient{}
	}
	return recipe, nil
}

// FindByIDs returns the recipes that exist among ids, keyed by id. Missing ids are
// simply absent from the map.
func (repository *SQLiteRecipeRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Recipe, error) {
	recipes := make(map[string]models.Recipe, len(ids))
	if len(ids) == 0 {
		return recipes, nil
	}

	placeholders, args := inClause(ids)
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes WHERE id IN ("+placeholders+")", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finding recipes by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		recipes[recipe.ID] = recipe
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := repository.loadIngredients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, recipe := range recipes {
		recipe.Ingredients = lines[id]
		if recipe.Ingredients == nil {
			recipe.Ingredients = []models.RecipeIngredient{}
		}
		recipes[id] = recipe
	}
	return recipes, nil
}

func (repository *SQLiteRecipeRepository) FindVisible(ctx context.Context, householdID string) ([]models.Recipe, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes WHERE household_id = ? OR is_private = 0 ORDER BY title ASC",
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding recipes: %w", err)
	}
	defer rows.Close()

	var recipes []models.Recipe
	var ids []string
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		recipes = append(recipes, recipe)
		ids = append(ids, recipe.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := repository.loadIngredients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		recipes[i].Ingredients = lines[recipes[i].ID]
		if recipes[i].Ingredients == nil {
			recipes[i].Ingredients = []models.RecipeIngredient{}
		}
	}
	return recipes, nil
}

func (repository *SQLiteRecipeRepository) loadIngredients(ctx context.Context, recipeIDs []string) (map[string][]models.RecipeIngredient, error) {
	lines := make(map[string][]models.RecipeIngredient)
	if len(recipeIDs) == 0 {
		return lines, nil
	}

	placeholders, args := inClause(recipeIDs)
	rows, err := repository.database.QueryContext(ctx,
		`SELECT ri.recipe_id, ri.ingredient_id, i.name, ri.quantity, ri.unit
		FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id IN (`+placeholders+`)
		ORDER BY ri.recipe_id, ri.position`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finding recipe ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID string
		var line models.RecipeIngredient
		if err := rows.Scan(&recipeID, &line.IngredientID, &line.IngredientName, &line.Quantity, &line.Unit); err != nil {
			return nil, fmt.Errorf("scanning recipe ingredient: %w", err)
		}
		lines[recipeID] = append(lines[recipeID], line)
	}
	return lines, rows.Err()
}

func (repository *SQLiteRecipeRepository) Create(ctx context.Context, recipe models.Recipe) (models.Recipe, error) {
	if recipe.ID == "" {
		recipe.ID = uuid.New().String()
	}
	now := time.Now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	if recipe.Ingredients == nil {
		recipe.Ingredients = []models.RecipeIngredient{}
	}

	err := withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		_, err := transaction.ExecContext(ctx,
			"INSERT INTO recipes ("+recipeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			recipe.ID, recipe.HouseholdID, recipe.Title, recipe.Instructions,
			recipe.Servings, recipe.PrepTime, recipe.CookTime,
			recipe.SourceURL, recipe.IsPrivate, recipe.CreatedByUserID,
			recipe.CreatedAt, recipe.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating recipe: %w", err)
		}
		return insertIngredients(ctx, transaction, recipe.ID, recipe.Ingredients)
	})
	if err != nil {
		return models.Recipe{}, err
	}
	return recipe, nil
}

func (repository *SQLiteRecipeRepository) Update(ctx context.Context, recipe models.Recipe) error {
	recipe.UpdatedAt = time.Now()

	return withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		result, err := transaction.ExecContext(ctx,
			`UPDATE recipes SET title = ?, instructions = ?, servings = ?, prep_time = ?,
				cook_time = ?, source_url = ?, is_private = ?, updated_at = ?
			WHERE id = ?`,
			recipe.Title, recipe.Instructions, recipe.Servings, recipe.PrepTime,
			recipe.CookTime, recipe.SourceURL, recipe.IsPrivate, recipe.UpdatedAt,
			recipe.ID,
		)
		if err != nil {
			return fmt.Errorf("updating recipe: %w", err)
		}
		if err := expectAffected(result, "updating recipe"); err != nil {
			return err
		}
		if _, err := transaction.ExecContext(ctx, "DELETE FROM recipe_ingredients WHERE recipe_id = ?", recipe.ID); err != nil {
			return fmt.Errorf("clearing recipe ingredients: %w", err)
		}
		return insertIngredients(ctx, transaction, recipe.ID, recipe.Ingredients)
	})
}

func (repository *SQLiteRecipeRepository) Delete(ctx context.Context, id string) error {
	return withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		if _, err := transaction.ExecContext(ctx,
			"UPDATE meal_slots SET recipe_id = NULL, updated_at = ? WHERE recipe_id = ?", time.Now(), id,
		); err != nil {
			return fmt.Errorf("clearing recipe from meal slots: %w", err)
		}
		if _, err := transaction.ExecContext(ctx, "DELETE FROM recipe_ingredients WHERE recipe_id = ?", id); err != nil {
			return fmt.Errorf("deleting recipe ingredients: %w", err)
		}
		result, err := transaction.ExecContext(ctx, "DELETE FROM recipes WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting recipe: %w", err)
		}
		return expectAffected(result, "deleting recipe")
	})
}

func insertIngredients(ctx context.Context, transaction *sql.Tx, recipeID string, lines []models.RecipeIngredient) error {
	for position, line := range lines {
		_, err := transaction.ExecContext(ctx,
			`INSERT INTO recipe_ingredients (recipe_id, position, ingredient_id, quantity, unit)
			VALUES (?, ?, ?, ?, ?)`,
			recipeID, position, line.IngredientID, line.Quantity.String(), line.Unit,
		)
		if err != nil {
			return fmt.Errorf("inserting recipe ingredient: %w", err)
		}
	}
	return nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, value := range values {
		args[i] = value
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}
