package dto

import (
	"github.com/google/uuid"
	"github.com/recipebox/recipebox-server/internal/models"
)

// RelationPayload is the nested descriptor used to attach a tag or
// ingredient to a recipe; it is resolved owner-scoped via get-or-create.
type RelationPayload struct {
	Name string `json:"name" validate:"required,max=255"`
}

type CreateRecipeRequest struct {
	Title       string            `json:"title" validate:"required,max=255"`
	Description string            `json:"description"`
	TimeMinutes int               `json:"time_minutes" validate:"gte=0"`
	Price       string            `json:"price" validate:"required"`
	Link        string            `json:"link" validate:"omitempty,max=255"`
	Tags        []RelationPayload `json:"tags" validate:"dive"`
	Ingredients []RelationPayload `json:"ingredients" validate:"dive"`
}

// UpdateRecipeRequest is a partial patch. Nil scalar fields are left
// untouched. A nil Tags/Ingredients pointer leaves the relation set alone;
// a non-nil pointer (including an empty list) replaces it wholesale.
type UpdateRecipeRequest struct {
	Title       *string            `json:"title" validate:"omitempty,max=255"`
	Description *string            `json:"description"`
	TimeMinutes *int               `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *string            `json:"price"`
	Link        *string            `json:"link" validate:"omitempty,max=255"`
	Tags        *[]RelationPayload `json:"tags" validate:"omitempty,dive"`
	Ingredients *[]RelationPayload `json:"ingredients" validate:"omitempty,dive"`
}

type UpdateNameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type TagResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type IngredientResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type RecipeResponse struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	TimeMinutes int                  `json:"time_minutes"`
	Price       string               `json:"price"`
	Link        string               `json:"link"`
	Tags        []TagResponse        `json:"tags"`
	Ingredients []IngredientResponse `json:"ingredients"`
}

// RecipeDetailResponse layers the detail-only fields over the list
// projection.
type RecipeDetailResponse struct {
	RecipeResponse
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type RecipeImageResponse struct {
	ID       uuid.UUID `json:"id"`
	ImageURL string    `json:"image_url"`
}

func NewTagResponse(t *models.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name}
}

func NewIngredientResponse(i *models.Ingredient) IngredientResponse {
	return IngredientResponse{ID: i.ID, Name: i.Name}
}

func NewRecipeResponse(r *models.Recipe) RecipeResponse {
	tags := make([]TagResponse, 0, len(r.Tags))
	for i := range r.Tags {
		tags = append(tags, NewTagResponse(&r.Tags[i]))
	}
	ingredients := make([]IngredientResponse, 0, len(r.Ingredients))
	for i := range r.Ingredients {
		ingredients = append(ingredients, NewIngredientResponse(&r.Ingredients[i]))
	}
	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Tags:        tags,
		Ingredients: ingredients,
	}
}

func NewRecipeDetailResponse(r *models.Recipe) RecipeDetailResponse {
	return RecipeDetailResponse{
		RecipeResponse: NewRecipeResponse(r),
		Description:    r.Description,
		ImageURL:       r.ImageURL,
	}
}

func NewRecipeListResponse(recipes []models.Recipe) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(recipes))
	for i := range recipes {
		out = append(out, NewRecipeResponse(&recipes[i]))
	}
	return out
}
