package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/google/uuid"
)

type MealPlanFilter struct {
	DateFrom string
	DateTo   string
}

type MealPlanRepository interface {
	FindByID(ctx context.Context, id string) (models.MealPlan, error)
	FindByHousehold(ctx context.Context, householdID string, filter MealPlanFilter) ([]models.MealPlan, error)
	Create(ctx context.Context, plan models.MealPlan) (models.MealPlan, error)
	Delete(ctx context.Context, id string) error
	UpsertSlot(ctx context.Context, slot models.MealSlot) (models.MealSlot, error)
	DeleteSlot(ctx context.Context, planID string, slotID string) error
}

type SQLiteMealPlanRepository struct {
	database *sql.DB
}

func NewMealPlanRepository(database *sql.DB) *SQLiteMealPlanRepository {
	return &SQLiteMealPlanRepository{database: database}
}

const mealPlanColumns = "id, household_id, name, start_date, end_date, created_by_user_id, created_at, updated_at"

const mealSlotOrder = "ORDER BY date ASC, CASE meal_type WHEN 'breakfast' THEN 1 WHEN 'lunch' THEN 2 WHEN 'dinner' THEN 3 WHEN 'snack' THEN 4 END"

func scanMealPlan(row rowScanner) (models.MealPlan, error) {
	var plan models.MealPlan
	err := row.Scan(
		&plan.ID, &plan.HouseholdID, &plan.Name, &plan.StartDate, &plan.EndDate,
		&plan.CreatedByUserID, &plan.CreatedAt, &plan.UpdatedAt,
	)
	return plan, err
}

func (repository *SQLiteMealPlanRepository) FindByID(ctx context.Context, id string) (models.MealPlan, error) {
	plan, err := scanMealPlan(repository.database.QueryRowContext(ctx,
		"SELECT "+mealPlanColumns+" FROM meal_plans WHERE id = ?", id,
	))
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("finding meal plan: %w", err)
	}

	plan.Slots, err = repository.findSlots(ctx, id)
	if err != nil {
		return models.MealPlan{}, err
	}
	return plan, nil
}

func (repository *SQLiteMealPlanRepository) FindByHousehold(ctx context.Context, householdID string, filter MealPlanFilter) ([]models.MealPlan, error) {
	query := "SELECT " + mealPlanColumns + " FROM meal_plans WHERE household_id = ?"
	args := []interface{}{householdID}

	if filter.DateFrom != "" {
		query += " AND end_date >= ?"
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += " AND start_date <= ?"
		args = append(args, filter.DateTo)
	}
	query += " ORDER BY start_date DESC"

	rows, err := repository.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding meal plans: %w", err)
	}
	defer rows.Close()

	var plans []models.MealPlan
	for rows.Next() {
		plan, err := scanMealPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning meal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		if plans[i].Slots, err = repository.findSlots(ctx, plans[i].ID); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (repository *SQLiteMealPlanRepository) findSlots(ctx context.Context, planID string) ([]models.MealSlot, error) {
	rows, err := repository.database.QueryContext(ctx,
		`SELECT id, meal_plan_id, date, meal_type, recipe_id, notes, created_at, updated_at
		FROM meal_slots WHERE meal_plan_id = ? `+mealSlotOrder,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding meal slots: %w", err)
	}
	defer rows.Close()

	slots := []models.MealSlot{}
	for rows.Next() {
		var slot models.MealSlot
		if err := rows.Scan(
			&slot.ID, &slot.MealPlanID, &slot.Date, &slot.MealType, &slot.RecipeID,
			&slot.Notes, &slot.CreatedAt, &slot.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning meal slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (repository *SQLiteMealPlanRepository) Create(ctx context.Context, plan models.MealPlan) (models.MealPlan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.Slots = []models.MealSlot{}

	_, err := repository.database.ExecContext(ctx,
		"INSERT INTO meal_plans ("+mealPlanColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		plan.ID, plan.HouseholdID, plan.Name, plan.StartDate, plan.EndDate,
		plan.CreatedByUserID, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("creating meal plan: %w", err)
	}
	return plan, nil
}

func (repository *SQLiteMealPlanRepository) Delete(ctx context.Context, id string) error {
	return withTransaction(ctx, repository.database, func(transaction *sql.Tx) error {
		if _, err := transaction.ExecContext(ctx, "DELETE FROM meal_slots WHERE meal_plan_id = ?", id); err != nil {
			return fmt.Errorf("deleting meal slots: %w", err)
		}
		result, err := transaction.ExecContext(ctx, "DELETE FROM meal_plans WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting meal plan: %w", err)
		}
		return expectAffected(result, "deleting meal plan")
	})
}

// UpsertSlot overwrites the slot occupying the same date and meal type.
func (repository *SQLiteMealPlanRepository) UpsertSlot(ctx context.Context, slot models.MealSlot) (models.MealSlot, error) {
	now := time.Now()
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO meal_slots (id, meal_plan_id, date, meal_type, recipe_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (meal_plan_id, date, meal_type) DO UPDATE SET
			recipe_id = excluded.recipe_id,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		slot.ID, slot.MealPlanID, slot.Date, slot.MealType, slot.RecipeID, slot.Notes, now, now,
	)
	if err != nil {
		return models.MealSlot{}, fmt.Errorf("upserting meal slot: %w", err)
	}

	err = repository.database.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM meal_slots
		WHERE meal_plan_id = ? AND date = ? AND meal_type = ?`,
		slot.MealPlanID, slot.Date, slot.MealType,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return models.MealSlot{}, fmt.Errorf("reading upserted meal slot: %w", err)
	}

	if _, err := repository.database.ExecContext(ctx,
		"UPDATE meal_plans SET updated_at = ? WHERE id = ?", now, slot.MealPlanID,
	); err != nil {
		return models.MealSlot{}, fmt.Errorf("touching meal plan: %w", err)
	}
	return slot, nil
}

func (repository *SQLiteMealPlanRepository) DeleteSlot(ctx context.Context, planID string, slotID string) error {
	result, err := repository.database.ExecContext(ctx,
		"DELETE FROM meal_slots WHERE id = ? AND meal_plan_id = ?", slotID, planID,
	)
	if err != nil {
		return fmt.Errorf("deleting meal slot: %w", err)
	}
	return expectAffected(result, "deleting meal slot")
}
