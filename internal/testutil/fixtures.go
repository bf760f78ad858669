package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/google/uuid"
)

// NewHouseholdMember creates a household and a user belonging to it.
func NewHouseholdMember(t *testing.T, db *sql.DB, name string) (models.Household, models.User) {
	t.Helper()
	ctx := context.Background()

	user := NewUser(t, db, name)
	household, err := repository.NewHouseholdRepository(db).Create(ctx, models.Household{
		Name:            name + "'s household",
		CreatedByUserID: user.ID,
	})
	if err != nil {
		t.Fatalf("creating household: %v", err)
	}
	if err := repository.NewUserRepository(db).SetHousehold(ctx, user.ID, &household.ID); err != nil {
		t.Fatalf("joining household: %v", err)
	}
	user.HouseholdID = &household.ID
	return household, user
}

// NewUser creates a user without a household.
func NewUser(t *testing.T, db *sql.DB, name string) models.User {
	t.Helper()
	user, err := repository.NewUserRepository(db).Create(context.Background(), models.User{
		OIDCSubject: "sub-" + uuid.New().String(),
		Email:       name + "@example.com",
		Name:        name,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}
