package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/google/uuid"
)

// ErrStaleVersion is returned by Save when the stored list moved past the version the
// caller read.
var ErrStaleVersion = errors.New("shopping list version is stale")

// ErrDuplicateName is returned by Create and Save when the household already has an
// active list with the same name.
var ErrDuplicateName = errors.New("an active shopping list with this name already exists")

type ShoppingListRepository interface {
	FindByID(ctx context.Context, id string) (models.ShoppingList, error)
	FindActiveByName(ctx context.Context, householdID string, name string) (models.ShoppingList, error)
	FindActiveByHousehold(ctx context.Context, householdID string) ([]models.ShoppingList, error)
	Create(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error)
	Save(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error)
	Deactivate(ctx context.Context, id string) error
	AddItem(ctx context.Context, listID string, item models.ShoppingListItem) (models.ShoppingListItem, error)
	RemoveItem(ctx context.Context, listID string, itemID string) error
	TogglePurchased(ctx context.Context, listID string, itemID string) (models.ShoppingListItem, error)
}

type SQLiteShoppingListRepository struct {
	database *sql.DB
}

func NewShoppingListRepository(database *sql.DB) *SQLiteShoppingListRepository {
	return &SQLiteShoppingListRepository{database: database}
}

const shoppingListColumns = "id, household_id, name, is_active, version, created_by_user_id, created_at, updated_at"

const shoppingItemSelect = `SELECT it.id, it.ingredient_id, COALESCE(i.name, ''), it.custom_name, it.quantity,
	it.unit, it.purchased, it.source_recipe_id, it.added_manually
	FROM shopping_list_items it LEFT JOIN ingredients i ON i.id = it.ingredient_id`

func scanShoppingList(row rowScanner) (models.ShoppingList, error) {
	var list models.ShoppingList
	err := row.Scan(
		&list.ID, &list.HouseholdID, &list.Name, &list.IsActive, &list.Version,
		&list.CreatedByUserID, &list.CreatedAt, &list.UpdatedAt,
	)
	return list, err
}

func scanShoppingItem(row rowScanner) (models.ShoppingListItem, error) {
	var item models.ShoppingListItem
	err := row.Scan(
		&item.ID, &item.IngredientID, &item.IngredientName, &item.CustomName, &item.Quantity,
		&item.Unit, &item.Purchased, &item.SourceRecipeID, &item.AddedManually,
	)
	return item, err
}

func (repository *SQLiteShoppingListRepository) FindByID(ctx context.Context, id string) (models.ShoppingList, error) {
	list, err := scanShoppingList(repository.database.QueryRowContext(ctx,
		"SELECT "+shoppingListColumns+" FROM shopping_lists WHERE id = ?", id,
	))
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("finding shopping list: %w", err)
	}
	return repository.loadContents(ctx, list)
}

// FindActiveByName returns the most recently created active list with exactly name.
func (repository *SQLiteShoppingListRepository) FindActiveByName(ctx context.Context, householdID string, name string) (models.ShoppingList, error) {
	list, err := scanShoppingList(repository.database.QueryRowContext(ctx,
		`SELECT `+shoppingListColumns+` FROM shopping_lists
		WHERE household_id = ? AND name = ? AND is_active = 1
		ORDER BY created_at DESC LIMIT 1`,
		householdID, name,
	))
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("finding shopping list by name: %w", err)
	}
	return repository.loadContents(ctx, list)
}

func (repository *SQLiteShoppingListRepository) FindActiveByHousehold(ctx context.Context, householdID string) ([]models.ShoppingList, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT `+shoppingListColumns+` FROM shopping_lists
		WHERE household_id = ? AND is_active = 1 ORDER BY created_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding shopping lists: %w", err)
	}
	defer rows.Close()

	var lists []models.ShoppingList
	for rows.Next() {
		list, err := scanShoppingList(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning shopping list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lists {
		if lists[i], err = repository.loadContents(ctx, lists[i]); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

func (repository *SQLiteShoppingListRepository) loadContents(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error) {
	rows, err := repository.database.QueryContext(ctx,
		shoppingItemSelect+" WHERE it.shopping_list_id = ? ORDER BY it.position", list.ID,
	)
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("finding shopping list items: %w", err)
	}
	defer rows.Close()

	list.Items = []models.ShoppingListItem{}
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return models.ShoppingList{}, fmt.Errorf("scanning shopping list item: %w", err)
		}
		list.Items = append(list.Items, item)
	}
	if err := rows.Err(); err != nil {
		return models.ShoppingList{}, err
	}

	recipeRows, err := repository.database.QueryContext(ctx,
		"SELECT recipe_id FROM shopping_list_recipes WHERE shopping_list_id = ? ORDER BY position", list.ID,
	)
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("finding shopping list recipes: %w", err)
	}
	defer recipeRows.Close()

	list.RecipeIDs = []string{}
	for recipeRows.Next() {
		var recipeID string
		if err := recipeRows.Scan(&recipeID); err != nil {
			return models.ShoppingList{}, fmt.Errorf("scanning shopping list recipe: %w", err)
		}
		list.RecipeIDs = append(list.RecipeIDs, recipeID)
	}
	return list, recipeRows.Err()
}

func (repository *SQLiteShoppingListRepository) Create(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error) {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := time.Now()
	list.CreatedAt = now
	list.UpdatedAt = now
	list.IsActive = true
	list.Version = 1
	assignItemIDs(list.Items)

	err := withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		_, err := transaction.ExecContext(ctx,
			"INSERT INTO shopping_lists ("+shoppingListColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			list.ID, list.HouseholdID, list.Name, list.IsActive, list.Version,
			list.CreatedByUserID, list.CreatedAt, list.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("creating shopping list %q: %w", list.Name, ErrDuplicateName)
		}
		if err != nil {
			return fmt.Errorf("creating shopping list: %w", err)
		}
		return writeContents(ctx, transaction, list)
	})
	if err != nil {
		return models.ShoppingList{}, err
	}
	return normalizeContents(list), nil
}

// Save replaces the name, items and recipe references of list and bumps its version.
// It fails with ErrStaleVersion, writing nothing, if list.Version is no longer current.
func (repository *SQLiteShoppingListRepository) Save(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error) {
	list.UpdatedAt = time.Now()
	assignItemIDs(list.Items)

	err := withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		result, err := transaction.ExecContext(ctx,
			`UPDATE shopping_lists SET name = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			list.Name, list.UpdatedAt, list.ID, list.Version,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("renaming shopping list %s to %q: %w", list.ID, list.Name, ErrDuplicateName)
		}
		if err != nil {
			return fmt.Errorf("updating shopping list: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating shopping list: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("updating shopping list %s at version %d: %w", list.ID, list.Version, ErrStaleVersion)
		}

		if _, err := transaction.ExecContext(ctx, "DELETE FROM shopping_list_items WHERE shopping_list_id = ?", list.ID); err != nil {
			return fmt.Errorf("clearing shopping list items: %w", err)
		}
		if _, err := transaction.ExecContext(ctx, "DELETE FROM shopping_list_recipes WHERE shopping_list_id = ?", list.ID); err != nil {
			return fmt.Errorf("clearing shopping list recipes: %w", err)
		}
		return writeContents(ctx, transaction, list)
	})
	if err != nil {
		return models.ShoppingList{}, err
	}
	list.Version++
	return normalizeContents(list), nil
}

func (repository *SQLiteShoppingListRepository) Deactivate(ctx context.Context, id string) error {
	result, err := repository.database.ExecContext(ctx,
		"UPDATE shopping_lists SET is_active = 0, version = version + 1, updated_at = ? WHERE id = ?",
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating shopping list: %w", err)
	}
	return expectAffected(result, "deactivating shopping list")
}

func (repository *SQLiteShoppingListRepository) AddItem(ctx context.Context, listID string, item models.ShoppingListItem) (models.ShoppingListItem, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	err := withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		if err := touchList(ctx, transaction, listID); err != nil {
			return err
		}
		var position int
		if err := transaction.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position) + 1, 0) FROM shopping_list_items WHERE shopping_list_id = ?", listID,
		).Scan(&position); err != nil {
			return fmt.Errorf("finding next item position: %w", err)
		}
		return insertItem(ctx, transaction, listID, position, item)
	})
	if err != nil {
		return models.ShoppingListItem{}, err
	}
	return item, nil
}

func (repository *SQLiteShoppingListRepository) RemoveItem(ctx context.Context, listID string, itemID string) error {
	return withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		result, err := transaction.ExecContext(ctx,
			"DELETE FROM shopping_list_items WHERE id = ? AND shopping_list_id = ?", itemID, listID,
		)
		if err != nil {
			return fmt.Errorf("removing shopping list item: %w", err)
		}
		if err := expectAffected(result, "removing shopping list item"); err != nil {
			return err
		}
		return touchList(ctx, transaction, listID)
	})
}

func (repository *SQLiteShoppingListRepository) TogglePurchased(ctx context.Context, listID string, itemID string) (models.ShoppingListItem, error) {
	var item models.ShoppingListItem
	err := withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		result, err := transaction.ExecContext(ctx,
			`UPDATE shopping_list_items SET purchased = CASE purchased WHEN 0 THEN 1 ELSE 0 END
			WHERE id = ? AND shopping_list_id = ?`,
			itemID, listID,
		)
		if err != nil {
			return fmt.Errorf("toggling shopping list item: %w", err)
		}
		if err := expectAffected(result, "toggling shopping list item"); err != nil {
			return err
		}
		if err := touchList(ctx, transaction, listID); err != nil {
			return err
		}
		item, err = scanShoppingItem(transaction.QueryRowContext(ctx, shoppingItemSelect+" WHERE it.id = ?", itemID))
		if err != nil {
			return fmt.Errorf("reading toggled item: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ShoppingListItem{}, err
	}
	return item, nil
}

// touchList bumps the version so a generation that read the list earlier cannot
// overwrite this item mutation.
func touchList(ctx context.Context, transaction *sql.Tx, listID string) error {
	result, err := transaction.ExecContext(ctx,
		"UPDATE shopping_lists SET version = version + 1, updated_at = ? WHERE id = ?", time.Now(), listID,
	)
	if err != nil {
		return fmt.Errorf("touching shopping list: %w", err)
	}
	return expectAffected(result, "touching shopping list")
}

func writeContents(ctx context.Context, transaction *sql.Tx, list models.ShoppingList) error {
	for position, item := range list.Items {
		if err := insertItem(ctx, transaction, list.ID, position, item); err != nil {
			return err
		}
	}
	for position, recipeID := range list.RecipeIDs {
		if _, err := transaction.ExecContext(ctx,
			"INSERT INTO shopping_list_recipes (shopping_list_id, recipe_id, position) VALUES (?, ?, ?)",
			list.ID, recipeID, position,
		); err != nil {
			return fmt.Errorf("inserting shopping list recipe: %w", err)
		}
	}
	return nil
}

func insertItem(ctx context.Context, transaction *sql.Tx, listID string, position int, item models.ShoppingListItem) error {
	_, err := transaction.ExecContext(ctx,
		`INSERT INTO shopping_list_items (id, shopping_list_id, position, ingredient_id, custom_name,
			quantity, unit, purchased, source_recipe_id, added_manually)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, listID, position, item.IngredientID, item.CustomName,
		item.Quantity.String(), item.Unit, item.Purchased, item.SourceRecipeID, item.AddedManually,
	)
	if err != nil {
		return fmt.Errorf("inserting shopping list item: %w", err)
	}
	return nil
}

func assignItemIDs(items []models.ShoppingListItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}
}

func normalizeContents(list models.ShoppingList) models.ShoppingList {
	if list.Items == nil {
		list.Items = []models.ShoppingListItem{}
	}
	if list.RecipeIDs == nil {
		list.RecipeIDs = []string{}
	}
	return list
}
