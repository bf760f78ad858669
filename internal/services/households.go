package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

const inviteTTL = 7 * 24 * time.Hour

type HouseholdService struct {
	householdRepo repository.HouseholdRepository
	userRepo      repository.UserRepository
	inviteSecret  []byte
}

type inviteClaims struct {
	HouseholdID string `json:"household_id"`
	jwt.RegisteredClaims
}

type Invite struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewHouseholdService(householdRepo repository.HouseholdRepository, userRepo repository.UserRepository, inviteSecret string) *HouseholdService {
	return &HouseholdService{
		householdRepo: householdRepo,
		userRepo:      userRepo,
		inviteSecret:  []byte(inviteSecret),
	}
}

// householdOf returns the household the user acts for.
func householdOf(user models.User) (string, error) {
	if user.HouseholdID == nil || *user.HouseholdID == "" {
		return "", ErrNoHousehold
	}
	return *user.HouseholdID, nil
}

func (service *HouseholdService) Create(ctx context.Context, user models.User, name string) (models.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Household{}, invalid("name", "is required")
	}
	if user.HouseholdID != nil {
		return models.Household{}, fmt.Errorf("user already belongs to a household: %w", ErrConflict)
	}

	household, err := service.householdRepo.Create(ctx, models.Household{
		Name:            name,
		CreatedByUserID: user.ID,
	})
	if err != nil {
		return models.Household{}, err
	}
	if err := service.userRepo.SetHousehold(ctx, user.ID, &household.ID); err != nil {
		return models.Household{}, notFoundOr(err, "joining new household")
	}

	slog.Info("created household", "id", household.ID, "user", user.ID)
	return household, nil
}

func (service *HouseholdService) Current(ctx context.Context, user models.User) (models.Household, []models.User, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.Household{}, nil, err
	}
	household, err := service.householdRepo.FindByID(ctx, householdID)
	if err != nil {
		return models.Household{}, nil, notFoundOr(err, "finding household")
	}
	members, err := service.userRepo.FindByHousehold(ctx, householdID)
	if err != nil {
		return models.Household{}, nil, err
	}
	return household, members, nil
}

func (service *HouseholdService) CreateInvite(ctx context.Context, user models.User) (Invite, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return Invite{}, err
	}

	expiresAt := time.Now().Add(inviteTTL)
	claims := inviteClaims{
		HouseholdID: householdID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.inviteSecret)
	if err != nil {
		return Invite{}, fmt.Errorf("signing invite: %w", err)
	}
	return Invite{Token: token, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Join puts a user without a household into the one named by a valid invite token.
// Members of another household must leave it first.
func (service *HouseholdService) Join(ctx context.Context, user models.User, token string) (models.Household, error) {
	if user.HouseholdID != nil {
		return models.Household{}, fmt.Errorf("user already belongs to a household: %w", ErrConflict)
	}

	claims := &inviteClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return service.inviteSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Household{}, invalid("token", "invite has expired")
		}
		return models.Household{}, invalid("token", "invite is not valid")
	}

	household, err := service.householdRepo.FindByID(ctx, claims.HouseholdID)
	if err != nil {
		return models.Household{}, notFoundOr(err, "finding invited household")
	}
	if err := service.userRepo.SetHousehold(ctx, user.ID, &household.ID); err != nil {
		return models.Household{}, notFoundOr(err, "joining household")
	}

	slog.Info("user joined household", "household", household.ID, "user", user.ID)
	return household, nil
}

func (service *HouseholdService) Leave(ctx context.Context, user models.User) error {
	if _, err := householdOf(user); err != nil {
		return err
	}
	if err := service.userRepo.SetHousehold(ctx, user.ID, nil); err != nil {
		return notFoundOr(err, "leaving household")
	}
	return nil
}
