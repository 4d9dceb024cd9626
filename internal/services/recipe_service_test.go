package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/recipebox/recipebox-server/internal/dto"
	"github.com/recipebox/recipebox-server/internal/models"
	"github.com/recipebox/recipebox-server/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRecipeService(db *gorm.DB) (*RecipeService, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage()
	return NewRecipeService(db, store), store
}

func recipeRequest() *dto.CreateRecipeRequest {
	return &dto.CreateRecipeRequest{
		Title:       "Sample Recipe",
		Description: "This is a sample recipe.",
		TimeMinutes: 60,
		Price:       "15.00",
		Link:        "https://example.com/recipe.pdf",
	}
}

func rel(names ...string) []dto.RelationPayload {
	out := make([]dto.RelationPayload, 0, len(names))
	for _, n := range names {
		out = append(out, dto.RelationPayload{Name: n})
	}
	return out
}

func tagNames(recipe *models.Recipe) []string {
	names := make([]string, 0, len(recipe.Tags))
	for _, tag := range recipe.Tags {
		names = append(names, tag.Name)
	}
	return names
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestCreateRecipe(t *testing.T) {
	t.Run("persists scalar fields", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		recipe, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)
		assert.Equal(t, "Sample Recipe", recipe.Title)
		assert.Equal(t, 60, recipe.TimeMinutes)
		assert.Equal(t, "15.00", recipe.Price.StringFixed(2))
		assert.Equal(t, user.ID, recipe.UserID)
		assert.Empty(t, recipe.Tags)
		assert.Empty(t, recipe.Ingredients)
	})

	t.Run("creates and attaches new tags and ingredients", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Vegan", "Dessert")
		req.Ingredients = rel("Flour", "Sugar")

		recipe, err := svc.Create(user.ID, req)
		require.NoError(t, err)
		assert.Len(t, recipe.Tags, 2)
		assert.Len(t, recipe.Ingredients, 2)

		var count int64
		db.Model(&models.Tag{}).Where("user_id = ?", user.ID).Count(&count)
		assert.EqualValues(t, 2, count)
	})

	t.Run("duplicate names in payload attach once", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Vegan", "Vegan")

		recipe, err := svc.Create(user.ID, req)
		require.NoError(t, err)
		assert.Len(t, recipe.Tags, 1)

		var count int64
		db.Model(&models.Tag{}).Where("user_id = ? AND name = ?", user.ID, "Vegan").Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("reuses an existing tag instead of duplicating it", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		existing := models.Tag{ID: uuid.New(), UserID: user.ID, Name: "Vegan"}
		require.NoError(t, db.Create(&existing).Error)

		req := recipeRequest()
		req.Tags = rel("Vegan")

		recipe, err := svc.Create(user.ID, req)
		require.NoError(t, err)
		require.Len(t, recipe.Tags, 1)
		assert.Equal(t, existing.ID, recipe.Tags[0].ID)

		var count int64
		db.Model(&models.Tag{}).Where("user_id = ? AND name = ?", user.ID, "Vegan").Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("does not reuse another owner's tag", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user1 := createTestUser(t, db, "one@example.com")
		user2 := createTestUser(t, db, "two@example.com")

		foreign := models.Tag{ID: uuid.New(), UserID: user1.ID, Name: "Vegan"}
		require.NoError(t, db.Create(&foreign).Error)

		req := recipeRequest()
		req.Tags = rel("Vegan")

		recipe, err := svc.Create(user2.ID, req)
		require.NoError(t, err)
		require.Len(t, recipe.Tags, 1)
		assert.NotEqual(t, foreign.ID, recipe.Tags[0].ID)
		assert.Equal(t, user2.ID, recipe.Tags[0].UserID)
	})

	t.Run("blank relation name aborts the whole write", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Vegan", "  ")

		_, err := svc.Create(user.ID, req)
		assert.ErrorIs(t, err, ErrBlankRelationName)

		var count int64
		db.Model(&models.Recipe{}).Count(&count)
		assert.EqualValues(t, 0, count, "no partially created recipe may remain")
	})

	t.Run("rejects invalid price", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		for _, price := range []string{"abc", "-1.00", "1000.00", "9.999"} {
			req := recipeRequest()
			req.Price = price
			_, err := svc.Create(user.ID, req)
			assert.ErrorIs(t, err, ErrInvalidPrice, "price %q", price)
		}
	})

	t.Run("rejects negative time", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.TimeMinutes = -5
		_, err := svc.Create(user.ID, req)
		assert.ErrorIs(t, err, ErrInvalidTime)
	})
}

func TestUpdateRecipe(t *testing.T) {
	t.Run("partial patch preserves untouched fields", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Breakfast")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		updated, err := svc.Update(user.ID, created.ID, &dto.UpdateRecipeRequest{
			Title: strPtr("New Title"),
		})
		require.NoError(t, err)
		assert.Equal(t, "New Title", updated.Title)
		assert.Equal(t, "https://example.com/recipe.pdf", updated.Link)
		assert.Equal(t, "15.00", updated.Price.StringFixed(2))
		assert.Equal(t, []string{"Breakfast"}, tagNames(updated))
	})

	t.Run("empty tag list clears all attachments", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Breakfast")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		empty := []dto.RelationPayload{}
		updated, err := svc.Update(user.ID, created.ID, &dto.UpdateRecipeRequest{Tags: &empty})
		require.NoError(t, err)
		assert.Empty(t, updated.Tags)

		// The detached tag row survives.
		var count int64
		db.Model(&models.Tag{}).Where("user_id = ? AND name = ?", user.ID, "Breakfast").Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("present tag list replaces the whole set", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Breakfast")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		lunch := rel("Lunch")
		updated, err := svc.Update(user.ID, created.ID, &dto.UpdateRecipeRequest{Tags: &lunch})
		require.NoError(t, err)
		assert.Equal(t, []string{"Lunch"}, tagNames(updated))
	})

	t.Run("patching with an existing tag reuses the row", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		existing := models.Tag{ID: uuid.New(), UserID: user.ID, Name: "Lunch"}
		require.NoError(t, db.Create(&existing).Error)

		created, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		lunch := rel("Lunch")
		updated, err := svc.Update(user.ID, created.ID, &dto.UpdateRecipeRequest{Tags: &lunch})
		require.NoError(t, err)
		require.Len(t, updated.Tags, 1)
		assert.Equal(t, existing.ID, updated.Tags[0].ID)
	})

	t.Run("absent relation keys leave attachments untouched", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Breakfast")
		req.Ingredients = rel("Eggs")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		updated, err := svc.Update(user.ID, created.ID, &dto.UpdateRecipeRequest{
			TimeMinutes: intPtr(25),
		})
		require.NoError(t, err)
		assert.Equal(t, 25, updated.TimeMinutes)
		assert.Len(t, updated.Tags, 1)
		assert.Len(t, updated.Ingredients, 1)
	})

	t.Run("cross-owner update is reported as not found", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user1 := createTestUser(t, db, "one@example.com")
		user2 := createTestUser(t, db, "two@example.com")

		created, err := svc.Create(user1.ID, recipeRequest())
		require.NoError(t, err)

		_, err = svc.Update(user2.ID, created.ID, &dto.UpdateRecipeRequest{Title: strPtr("Hijacked")})
		assert.ErrorIs(t, err, ErrRecipeNotFound)

		unchanged, err := svc.Get(user1.ID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sample Recipe", unchanged.Title)
	})
}

func TestDeleteRecipe(t *testing.T) {
	t.Run("removes the recipe but keeps its tags", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Vegan")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		require.NoError(t, svc.Delete(context.Background(), user.ID, created.ID))

		_, err = svc.Get(user.ID, created.ID)
		assert.ErrorIs(t, err, ErrRecipeNotFound)

		var tagCount, joinCount int64
		db.Model(&models.Tag{}).Where("user_id = ?", user.ID).Count(&tagCount)
		assert.EqualValues(t, 1, tagCount)
		db.Table("recipe_tags").Count(&joinCount)
		assert.EqualValues(t, 0, joinCount)
	})

	t.Run("removes the stored image object", func(t *testing.T) {
		db := newTestDB(t)
		svc, store := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		created, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		_, err = svc.AttachImage(context.Background(), user.ID, created.ID, pngBytes(t))
		require.NoError(t, err)
		require.Equal(t, 1, store.Len())

		require.NoError(t, svc.Delete(context.Background(), user.ID, created.ID))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("cross-owner delete is reported as not found", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user1 := createTestUser(t, db, "one@example.com")
		user2 := createTestUser(t, db, "two@example.com")

		created, err := svc.Create(user1.ID, recipeRequest())
		require.NoError(t, err)

		err = svc.Delete(context.Background(), user2.ID, created.ID)
		assert.ErrorIs(t, err, ErrRecipeNotFound)

		_, err = svc.Get(user1.ID, created.ID)
		assert.NoError(t, err)
	})
}

func TestListRecipes(t *testing.T) {
	t.Run("is limited to the owner", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user1 := createTestUser(t, db, "one@example.com")
		user2 := createTestUser(t, db, "two@example.com")

		_, err := svc.Create(user1.ID, recipeRequest())
		require.NoError(t, err)
		mine, err := svc.Create(user2.ID, recipeRequest())
		require.NoError(t, err)

		recipes, err := svc.List(user2.ID, RecipeFilter{})
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, mine.ID, recipes[0].ID)
	})

	t.Run("returns most recently created first", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		first, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)
		second := recipeRequest()
		second.Title = "Another Recipe"
		latest, err := svc.Create(user.ID, second)
		require.NoError(t, err)

		recipes, err := svc.List(user.ID, RecipeFilter{})
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		assert.Equal(t, latest.ID, recipes[0].ID)
		assert.Equal(t, first.ID, recipes[1].ID)
	})

	t.Run("filters by tag membership", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		vegan := recipeRequest()
		vegan.Title = "Vegan Curry"
		vegan.Tags = rel("Vegan")
		r1, err := svc.Create(user.ID, vegan)
		require.NoError(t, err)

		dessert := recipeRequest()
		dessert.Title = "Tiramisu"
		dessert.Tags = rel("Dessert")
		r2, err := svc.Create(user.ID, dessert)
		require.NoError(t, err)

		plain := recipeRequest()
		plain.Title = "Plain Rice"
		r3, err := svc.Create(user.ID, plain)
		require.NoError(t, err)

		recipes, err := svc.List(user.ID, RecipeFilter{
			TagIDs: []uuid.UUID{r1.Tags[0].ID, r2.Tags[0].ID},
		})
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		ids := []uuid.UUID{recipes[0].ID, recipes[1].ID}
		assert.Contains(t, ids, r1.ID)
		assert.Contains(t, ids, r2.ID)
		assert.NotContains(t, ids, r3.ID)
	})

	t.Run("filters by ingredient membership", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		withEggs := recipeRequest()
		withEggs.Ingredients = rel("Eggs")
		r1, err := svc.Create(user.ID, withEggs)
		require.NoError(t, err)

		_, err = svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		recipes, err := svc.List(user.ID, RecipeFilter{
			IngredientIDs: []uuid.UUID{r1.Ingredients[0].ID},
		})
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, r1.ID, recipes[0].ID)
	})

	t.Run("a recipe matching several filter ids appears once", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		req := recipeRequest()
		req.Tags = rel("Vegan", "Dessert")
		created, err := svc.Create(user.ID, req)
		require.NoError(t, err)

		recipes, err := svc.List(user.ID, RecipeFilter{
			TagIDs: []uuid.UUID{created.Tags[0].ID, created.Tags[1].ID},
		})
		require.NoError(t, err)
		assert.Len(t, recipes, 1)
	})
}

func TestAttachImage(t *testing.T) {
	t.Run("stores a valid image and records the reference", func(t *testing.T) {
		db := newTestDB(t)
		svc, store := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		created, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		recipe, err := svc.AttachImage(context.Background(), user.ID, created.ID, pngBytes(t))
		require.NoError(t, err)
		assert.NotEmpty(t, recipe.ImageKey)
		assert.NotEmpty(t, recipe.ImageURL)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("replacing an image removes the prior object", func(t *testing.T) {
		db := newTestDB(t)
		svc, store := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		created, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		first, err := svc.AttachImage(context.Background(), user.ID, created.ID, pngBytes(t))
		require.NoError(t, err)
		second, err := svc.AttachImage(context.Background(), user.ID, created.ID, pngBytes(t))
		require.NoError(t, err)

		assert.NotEqual(t, first.ImageKey, second.ImageKey)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("rejects non-image bytes and leaves the recipe unchanged", func(t *testing.T) {
		db := newTestDB(t)
		svc, store := newRecipeService(db)
		user := createTestUser(t, db, "test@example.com")

		created, err := svc.Create(user.ID, recipeRequest())
		require.NoError(t, err)

		_, err = svc.AttachImage(context.Background(), user.ID, created.ID, []byte("not an image"))
		assert.ErrorIs(t, err, ErrNotAnImage)
		assert.Equal(t, 0, store.Len())

		reloaded, err := svc.Get(user.ID, created.ID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.ImageKey)
		assert.Empty(t, reloaded.ImageURL)
	})

	t.Run("cross-owner upload is reported as not found", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newRecipeService(db)
		user1 := createTestUser(t, db, "one@example.com")
		user2 := createTestUser(t, db, "two@example.com")

		created, err := svc.Create(user1.ID, recipeRequest())
		require.NoError(t, err)

		_, err = svc.AttachImage(context.Background(), user2.ID, created.ID, pngBytes(t))
		assert.ErrorIs(t, err, ErrRecipeNotFound)
	})
}
