package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bensuskins/family-kitchen/internal/config"
	"github.com/bensuskins/family-kitchen/internal/handlers"
	"github.com/bensuskins/family-kitchen/internal/middleware"
	"github.com/bensuskins/family-kitchen/internal/repository"
	"github.com/bensuskins/family-kitchen/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(database *sql.DB, cfg config.Config, authService *services.AuthService) (*Server, error) {
	keying, err := services.ParseKeying(cfg.ShoppingKeying)
	if err != nil {
		return nil, fmt.Errorf("configuring shopping lists: %w", err)
	}
	options := services.ShoppingListOptions{Keying: keying}
	if cfg.GenerationLocking == config.LockingKeyed {
		options.Locks = services.NewKeyedLocker()
	}

	userRepo := repository.NewUserRepository(database)
	householdRepo := repository.NewHouseholdRepository(database)
	tokenRepo := repository.NewAPITokenRepository(database)
	ingredientRepo := repository.NewIngredientRepository(database)
	recipeRepo := repository.NewRecipeRepository(database)
	mealPlanRepo := repository.NewMealPlanRepository(database)
	listRepo := repository.NewShoppingListRepository(database)

	householdService := services.NewHouseholdService(householdRepo, userRepo, cfg.SessionSecret)
	recipeService := services.NewRecipeService(recipeRepo, ingredientRepo)
	mealPlanService := services.NewMealPlanService(mealPlanRepo, recipeRepo)
	shoppingListService := services.NewShoppingListService(listRepo, recipeRepo, mealPlanRepo, ingredientRepo, options)

	authHandler := handlers.NewAuthHandler(authService, householdService)
	apiHandler := handlers.NewAPIHandler(tokenRepo)
	householdHandler := handlers.NewHouseholdHandler(householdService)
	recipeHandler := handlers.NewRecipeHandler(recipeService)
	mealPlanHandler := handlers.NewMealPlanHandler(mealPlanService)
	shoppingListHandler := handlers.NewShoppingListHandler(shoppingListService)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/auth/login", authHandler.Login)
	router.Get("/auth/callback", authHandler.Callback)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(authService, tokenRepo, userRepo))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		r.Post("/households", householdHandler.Create)
		r.Post("/households/join", householdHandler.Join)

		r.Get("/api/tokens", apiHandler.ListTokens)
		r.Post("/api/tokens", apiHandler.CreateToken)
		r.Delete("/api/tokens/{id}", apiHandler.DeleteToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireHousehold)

			r.Get("/households/current", householdHandler.Current)
			r.Post("/households/invites", householdHandler.CreateInvite)
			r.Post("/households/leave", householdHandler.Leave)

			r.Get("/ingredients", recipeHandler.SearchIngredients)

			r.Get("/recipes", recipeHandler.List)
			r.Post("/recipes", recipeHandler.Create)
			r.Get("/recipes/{id}", recipeHandler.Get)
			r.Put("/recipes/{id}", recipeHandler.Update)
			r.Delete("/recipes/{id}", recipeHandler.Delete)

			r.Get("/meal-plans", mealPlanHandler.List)
			r.Post("/meal-plans", mealPlanHandler.Create)
			r.Get("/meal-plans/{id}", mealPlanHandler.Get)
			r.Delete("/meal-plans/{id}", mealPlanHandler.Delete)
			r.Get("/meal-plans/{id}/calendar.ics", mealPlanHandler.Calendar)
			r.Put("/meal-plans/{id}/slots", mealPlanHandler.SaveSlot)
			r.Delete("/meal-plans/{id}/slots/{slotID}", mealPlanHandler.DeleteSlot)

			r.Get("/shopping-lists", shoppingListHandler.List)
			r.Post("/shopping-lists", shoppingListHandler.Create)
			r.Post("/shopping-lists/generate-from-meal-plan", shoppingListHandler.GenerateFromMealPlan)
			r.Get("/shopping-lists/{id}", shoppingListHandler.Get)
			r.Delete("/shopping-lists/{id}", shoppingListHandler.Delete)
			r.Post("/shopping-lists/{id}/items", shoppingListHandler.AddItem)
			r.Delete("/shopping-lists/{id}/items/{itemID}", shoppingListHandler.RemoveItem)
			r.Patch("/shopping-lists/{id}/items/{itemID}/toggle", shoppingListHandler.ToggleItem)
		})
	})

	server := &Server{
		router: router,
		config: cfg,
	}

	return server, nil
}

func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) Start() error {
	address := ":" + server.config.Port
	slog.Info("starting server", "address", address)
	return http.ListenAndServe(address, server.router)
}
