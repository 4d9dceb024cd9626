package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/recipebox/recipebox-server/internal/config"
	"github.com/recipebox/recipebox-server/internal/handlers"
	"github.com/recipebox/recipebox-server/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	recipeHandler *handlers.RecipeHandler,
	tagHandler *handlers.TagHandler,
	ingredientHandler *handlers.IngredientHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// User registration and token issuance are the only public endpoints.
	// Stricter rate limit: 10 req/min per IP.
	user := api.Group("/user")
	user.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	user.Post("/", authHandler.Register)
	user.Post("/token", authHandler.Login)
	user.Post("/token/refresh", authHandler.Refresh)

	protected := middleware.JWTProtected(cfg)

	api.Post("/user/logout", protected, authHandler.Logout)
	api.Get("/user/me", protected, authHandler.Me)
	api.Put("/user/me", protected, authHandler.UpdateMe)
	api.Patch("/user/me", protected, authHandler.UpdateMe)

	recipes := api.Group("/recipes", protected)
	recipes.Get("/", recipeHandler.List)
	recipes.Post("/", recipeHandler.Create)
	recipes.Get("/:id", recipeHandler.Get)
	recipes.Put("/:id", recipeHandler.Update)
	recipes.Patch("/:id", recipeHandler.Update)
	recipes.Delete("/:id", recipeHandler.Delete)
	recipes.Post("/:id/image", recipeHandler.UploadImage)

	tags := api.Group("/tags", protected)
	tags.Get("/", tagHandler.List)
	tags.Put("/:id", tagHandler.Update)
	tags.Patch("/:id", tagHandler.Update)
	tags.Delete("/:id", tagHandler.Delete)

	ingredients := api.Group("/ingredients", protected)
	ingredients.Get("/", ingredientHandler.List)
	ingredients.Put("/:id", ingredientHandler.Update)
	ingredients.Patch("/:id", ingredientHandler.Update)
	ingredients.Delete("/:id", ingredientHandler.Delete)
}
