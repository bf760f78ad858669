package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/bensuskins/family-kitchen/internal/models"
	"github.com/bensuskins/family-kitchen/internal/repository"
)

const dateLayout = "2006-01-02"

type MealPlanInput struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type MealSlotInput struct {
	Date     string          `json:"date"`
	MealType models.MealType `json:"mealType"`
	RecipeID *string         `json:"recipeId"`
	Notes    string          `json:"notes"`
}

type MealPlanService struct {
	mealPlanRepo repository.MealPlanRepository
	recipeRepo   repository.RecipeRepository
}

func NewMealPlanService(mealPlanRepo repository.MealPlanRepository, recipeRepo repository.RecipeRepository) *MealPlanService {
	return &MealPlanService{mealPlanRepo: mealPlanRepo, recipeRepo: recipeRepo}
}

func (service *MealPlanService) List(ctx context.Context, user models.User, filter repository.MealPlanFilter) ([]models.MealPlan, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return nil, err
	}
	plans, err := service.mealPlanRepo.FindByHousehold(ctx, householdID, filter)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []models.MealPlan{}
	}
	return plans, nil
}

// Get loads a meal plan owned by the user's household.
func (service *MealPlanService) Get(ctx context.Context, user models.User, id string) (models.MealPlan, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.MealPlan{}, err
	}
	plan, err := service.mealPlanRepo.FindByID(ctx, id)
	if err != nil {
		return models.MealPlan{}, notFoundOr(err, "meal plan "+id)
	}
	if plan.HouseholdID != householdID {
		return models.MealPlan{}, fmt.Errorf("meal plan %s: %w", id, ErrForbidden)
	}
	return plan, nil
}

func (service *MealPlanService) Create(ctx context.Context, user models.User, input MealPlanInput) (models.MealPlan, error) {
	householdID, err := householdOf(user)
	if err != nil {
		return models.MealPlan{}, err
	}

	start, err := time.Parse(dateLayout, input.StartDate)
	if err != nil {
		return models.MealPlan{}, invalid("startDate", "must be YYYY-MM-DD")
	}
	end := start.AddDate(0, 0, 6)
	if input.EndDate != "" {
		if end, err = time.Parse(dateLayout, input.EndDate); err != nil {
			return models.MealPlan{}, invalid("endDate", "must be YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		return models.MealPlan{}, invalid("endDate", "must not be before startDate")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Week of " + start.Format(dateLayout)
	}

	return service.mealPlanRepo.Create(ctx, models.MealPlan{
		HouseholdID:     householdID,
		Name:            name,
		StartDate:       start.Format(dateLayout),
		EndDate:         end.Format(dateLayout),
		CreatedByUserID: user.ID,
	})
}

func (service *MealPlanService) Delete(ctx context.Context, user models.User, id string) error {
	if _, err := service.Get(ctx, user, id); err != nil {
		return err
	}
	if err := service.mealPlanRepo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "meal plan "+id)
	}
	return nil
}

func (service *MealPlanService) SaveSlot(ctx context.Context, user models.User, planID string, input MealSlotInput) (models.MealSlot, error) {
	plan, err := service.Get(ctx, user, planID)
	if err != nil {
		return models.MealSlot{}, err
	}

	date, err := time.Parse(dateLayout, input.Date)
	if err != nil {
		return models.MealSlot{}, invalid("date", "must be YYYY-MM-DD")
	}
	normalizedDate := date.Format(dateLayout)
	if normalizedDate < plan.StartDate || normalizedDate > plan.EndDate {
		return models.MealSlot{}, invalid("date", "must fall between %s and %s", plan.StartDate, plan.EndDate)
	}
	if !input.MealType.Valid() {
		return models.MealSlot{}, invalid("mealType", "unknown meal type %q", input.MealType)
	}

	recipeID := input.RecipeID
	if recipeID != nil && *recipeID == "" {
		recipeID = nil
	}
	if recipeID != nil {
		recipe, err := service.recipeRepo.FindByID(ctx, *recipeID)
		if err != nil {
			return models.MealSlot{}, notFoundOr(err, "recipe "+*recipeID)
		}
		if !canView(recipe, plan.HouseholdID) {
			return models.MealSlot{}, fmt.Errorf("recipe %s: %w", *recipeID, ErrForbidden)
		}
	}

	return service.mealPlanRepo.UpsertSlot(ctx, models.MealSlot{
		MealPlanID: plan.ID,
		Date:       normalizedDate,
		MealType:   input.MealType,
		RecipeID:   recipeID,
		Notes:      input.Notes,
	})
}

func (service *MealPlanService) DeleteSlot(ctx context.Context, user models.User, planID string, slotID string) error {
	if _, err := service.Get(ctx, user, planID); err != nil {
		return err
	}
	if err := service.mealPlanRepo.DeleteSlot(ctx, planID, slotID); err != nil {
		return notFoundOr(err, "meal slot "+slotID)
	}
	return nil
}

// Calendar renders the plan's slots as all-day iCalendar events.
func (service *MealPlanService) Calendar(ctx context.Context, user models.User, planID string) (string, error) {
	plan, err := service.Get(ctx, user, planID)
	if err != nil {
		return "", err
	}

	ids, _ := RecipeOccurrences(plan)
	recipes, err := service.recipeRepo.FindByIDs(ctx, ids)
	if err != nil {
		return "", err
	}

	calendar := ical.NewCalendar()
	calendar.SetMethod(ical.MethodPublish)
	calendar.SetProductId("-//Family Kitchen//Meal Plan//EN")
	calendar.SetXWRCalName(plan.Name)

	for _, slot := range plan.Slots {
		date, err := time.Parse(dateLayout, slot.Date)
		if err != nil {
			return "", fmt.Errorf("parsing slot date %q: %w", slot.Date, err)
		}

		summary := "[" + capitalizeFirst(string(slot.MealType)) + "]"
		if slot.RecipeID != nil {
			if recipe, ok := recipes[*slot.RecipeID]; ok {
				summary += " " + recipe.Title
			}
		}

		event := calendar.AddEvent(fmt.Sprintf("meal-%s@family-kitchen", slot.ID))
		event.SetSummary(summary)
		if slot.Notes != "" {
			event.SetDescription(slot.Notes)
		}
		event.SetAllDayStartAt(date)
		event.SetAllDayEndAt(date.AddDate(0, 0, 1))
		event.SetDtStampTime(slot.UpdatedAt)
	}

	return calendar.Serialize(), nil
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
