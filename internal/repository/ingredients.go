package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/google/uuid"
)

type IngredientRepository interface {
	FindByName(ctx context.Context, name string) (models.Ingredient, error)
	FindOrCreate(ctx context.Context, name string) (models.Ingredient, error)
	Search(ctx context.Context, prefix string, limit int) ([]models.Ingredient, error)
}

type SQLiteIngredientRepository struct {
	database *sql.DB
}

func NewIngredientRepository(database *sql.DB) *SQLiteIngredientRepository {
	return &SQLiteIngredientRepository{database: database}
}

// NormalizeIngredientName lowercases, trims and collapses inner whitespace.
func NormalizeIngredientName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (repository *SQLiteIngredientRepository) FindByName(ctx context.Context, name string) (models.Ingredient, error) {
	var ingredient models.Ingredient
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM ingredients WHERE name = ?", NormalizeIngredientName(name),
	).Scan(&ingredient.ID, &ingredient.Name, &ingredient.CreatedAt)
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("finding ingredient by name: %w", err)
	}
	return ingredient, nil
}

func (repository *SQLiteIngredientRepository) FindOrCreate(ctx context.Context, name string) (models.Ingredient, error) {
	normalized := NormalizeIngredientName(name)
	if normalized == "" {
		return models.Ingredient{}, errors.New("ingredient name is empty")
	}

	ingredient := models.Ingredient{
		ID:        uuid.New().String(),
		Name:      normalized,
		CreatedAt: time.Now(),
	}
	// A concurrent insert of the same name loses the race silently and reads the winner.
	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO ingredients (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING",
		ingredient.ID, ingredient.Name, ingredient.CreatedAt,
	)
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("creating ingredient: %w", err)
	}
	return repository.FindByName(ctx, normalized)
}

func (repository *SQLiteIngredientRepository) Search(ctx context.Context, prefix string, limit int) ([]models.Ingredient, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := escapeLike(NormalizeIngredientName(prefix)) + "%"
	rows, err := repository.database.QueryContext(ctx,
		`SELECT id, name, created_at FROM ingredients
		WHERE name LIKE ? ESCAPE '\' ORDER BY name LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []models.Ingredient
	for rows.Next() {
		var ingredient models.Ingredient
		if err := rows.Scan(&ingredient.ID, &ingredient.Name, &ingredient.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		ingredients = append(ingredients, ingredient)
	}
	return ingredients, rows.Err()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
