package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/recipebox/recipebox-server/internal/dto"
	"github.com/recipebox/recipebox-server/internal/images"
	"github.com/recipebox/recipebox-server/internal/models"
	"github.com/recipebox/recipebox-server/internal/owner"
	"github.com/recipebox/recipebox-server/internal/storage"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRecipeNotFound covers both a missing id and a foreign owner's
	// recipe; callers cannot tell the two apart.
	ErrRecipeNotFound    = errors.New("recipe not found")
	ErrBlankRelationName = errors.New("tag and ingredient names must not be blank")
	ErrInvalidPrice      = errors.New("price must be a decimal between 0 and 999.99 with at most 2 fractional digits")
	ErrInvalidTime       = errors.New("time_minutes must not be negative")
	ErrNotAnImage        = errors.New("uploaded file is not a supported image")
)

var maxPrice = decimal.RequireFromString("999.99")

// RecipeFilter narrows a recipe listing to recipes holding at least one of
// the given tags, and at least one of the given ingredients.
type RecipeFilter struct {
	TagIDs        []uuid.UUID
	IngredientIDs []uuid.UUID
}

type RecipeService struct {
	db    *gorm.DB
	store storage.Storage
}

func NewRecipeService(db *gorm.DB, store storage.Storage) *RecipeService {
	return &RecipeService{db: db, store: store}
}

func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	if price.IsNegative() || price.GreaterThan(maxPrice) || price.Exponent() < -2 {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return price, nil
}

func (s *RecipeService) List(ownerID uuid.UUID, filter RecipeFilter) ([]models.Recipe, error) {
	q := s.db.Model(&models.Recipe{}).
		Scopes(owner.Scope(ownerID)).
		Preload("Tags").
		Preload("Ingredients")

	if len(filter.TagIDs) > 0 {
		q = q.Joins("JOIN recipe_tags ON recipe_tags.recipe_id = recipes.id").
			Where("recipe_tags.tag_id IN ?", filter.TagIDs)
	}
	if len(filter.IngredientIDs) > 0 {
		q = q.Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = recipes.id").
			Where("recipe_ingredients.ingredient_id IN ?", filter.IngredientIDs)
	}
	if len(filter.TagIDs) > 0 || len(filter.IngredientIDs) > 0 {
		// Joins multiply rows when a recipe matches several filter ids.
		q = q.Distinct("recipes.*")
	}

	var recipes []models.Recipe
	if err := q.Order("recipes.created_at DESC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeService) Get(ownerID, recipeID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.Scopes(owner.Scope(ownerID)).
		Preload("Tags").
		Preload("Ingredients").
		First(&recipe, "id = ?", recipeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	return &recipe, nil
}

func (s *RecipeService) Create(ownerID uuid.UUID, req *dto.CreateRecipeRequest) (*models.Recipe, error) {
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	if req.TimeMinutes < 0 {
		return nil, ErrInvalidTime
	}

	recipe := models.Recipe{
		ID:          uuid.New(),
		UserID:      ownerID,
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: req.TimeMinutes,
		Price:       price,
		Link:        req.Link,
	}

	// Recipe row and relation attachments become visible together or not
	// at all.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Ingredients").Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		tags, err := reconcileTags(tx, ownerID, req.Tags)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(&recipe).Association("Tags").Append(&tags); err != nil {
				return fmt.Errorf("failed to attach tags: %w", err)
			}
		}

		ingredients, err := reconcileIngredients(tx, ownerID, req.Ingredients)
		if err != nil {
			return err
		}
		if len(ingredients) > 0 {
			if err := tx.Model(&recipe).Association("Ingredients").Append(&ingredients); err != nil {
				return fmt.Errorf("failed to attach ingredients: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ownerID, recipe.ID)
}

func (s *RecipeService) Update(ownerID, recipeID uuid.UUID, req *dto.UpdateRecipeRequest) (*models.Recipe, error) {
	recipe, err := s.Get(ownerID, recipeID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.TimeMinutes != nil {
		if *req.TimeMinutes < 0 {
			return nil, ErrInvalidTime
		}
		updates["time_minutes"] = *req.TimeMinutes
	}
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			return nil, err
		}
		updates["price"] = price
	}
	if req.Link != nil {
		updates["link"] = *req.Link
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(recipe).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update recipe: %w", err)
			}
		}

		// A present relation key replaces the whole set; an empty list
		// clears it. An absent key leaves the set untouched.
		if req.Tags != nil {
			tags, err := reconcileTags(tx, ownerID, *req.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(recipe).Association("Tags").Replace(&tags); err != nil {
				return fmt.Errorf("failed to replace tags: %w", err)
			}
		}
		if req.Ingredients != nil {
			ingredients, err := reconcileIngredients(tx, ownerID, *req.Ingredients)
			if err != nil {
				return err
			}
			if err := tx.Model(recipe).Association("Ingredients").Replace(&ingredients); err != nil {
				return fmt.Errorf("failed to replace ingredients: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ownerID, recipeID)
}

func (s *RecipeService) Delete(ctx context.Context, ownerID, recipeID uuid.UUID) error {
	recipe, err := s.Get(ownerID, recipeID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Detach relations; the tag/ingredient rows themselves survive.
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("failed to detach tags: %w", err)
		}
		if err := tx.Model(recipe).Association("Ingredients").Clear(); err != nil {
			return fmt.Errorf("failed to detach ingredients: %w", err)
		}
		if err := tx.Delete(recipe).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if recipe.ImageKey != "" {
		if err := s.store.Remove(ctx, recipe.ImageKey); err != nil {
			slog.Warn("failed to remove recipe image object", "key", recipe.ImageKey, "error", err)
		}
	}
	return nil
}

// AttachImage validates and stores the uploaded bytes, then swaps the
// recipe's image reference. The prior object is removed after the swap; a
// failed validation leaves the recipe untouched.
func (s *RecipeService) AttachImage(ctx context.Context, ownerID, recipeID uuid.UUID, data []byte) (*models.Recipe, error) {
	recipe, err := s.Get(ownerID, recipeID)
	if err != nil {
		return nil, err
	}

	format, err := images.Detect(data)
	if err != nil {
		return nil, ErrNotAnImage
	}

	key := fmt.Sprintf("recipes/%s/%s.%s", recipe.ID, uuid.New(), images.Ext(format))
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/"+format)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	oldKey := recipe.ImageKey
	err = s.db.Model(recipe).Updates(map[string]interface{}{
		"image_key": key,
		"image_url": url,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record image reference: %w", err)
	}
	recipe.ImageKey = key
	recipe.ImageURL = url

	if oldKey != "" {
		if err := s.store.Remove(ctx, oldKey); err != nil {
			slog.Warn("failed to remove replaced image object", "key", oldKey, "error", err)
		}
	}
	return recipe, nil
}

// reconcileTags resolves relation descriptors into owner-scoped tag rows.
// Each name is inserted with on-conflict-do-nothing against the compound
// (user_id, name) unique index and then reselected, so two requests racing
// on the same name converge on one row. Duplicate names within a single
// payload attach once.
func reconcileTags(tx *gorm.DB, ownerID uuid.UUID, payloads []dto.RelationPayload) ([]models.Tag, error) {
	seen := make(map[string]struct{}, len(payloads))
	tags := make([]models.Tag, 0, len(payloads))
	for _, p := range payloads {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, ErrBlankRelationName
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		insert := models.Tag{ID: uuid.New(), UserID: ownerID, Name: name}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoNothing: true,
		}).Create(&insert).Error
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		// Reselect into a fresh struct: on conflict the generated id above
		// never made it into the table.
		var tag models.Tag
		if err := tx.Where("user_id = ? AND name = ?", ownerID, name).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("failed to load tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func reconcileIngredients(tx *gorm.DB, ownerID uuid.UUID, payloads []dto.RelationPayload) ([]models.Ingredient, error) {
	seen := make(map[string]struct{}, len(payloads))
	ingredients := make([]models.Ingredient, 0, len(payloads))
	for _, p := range payloads {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, ErrBlankRelationName
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		insert := models.Ingredient{ID: uuid.New(), UserID: ownerID, Name: name}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoNothing: true,
		}).Create(&insert).Error
		if err != nil {
			return nil, fmt.Errorf("failed to create ingredient %q: %w", name, err)
		}
		var ingredient models.Ingredient
		if err := tx.Where("user_id = ? AND name = ?", ownerID, name).First(&ingredient).Error; err != nil {
			return nil, fmt.Errorf("failed to load ingredient %q: %w", name, err)
		}
		ingredients = append(ingredients, ingredient)
	}
	return ingredients, nil
}
