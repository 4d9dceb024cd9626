package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/recipebox/recipebox-server/internal/models"
	"github.com/recipebox/recipebox-server/internal/owner"
	"gorm.io/gorm"
)

var (
	ErrIngredientNotFound  = errors.New("ingredient not found")
	ErrIngredientNameTaken = errors.New("an ingredient with this name already exists")
)

type IngredientService struct {
	db *gorm.DB
}

func NewIngredientService(db *gorm.DB) *IngredientService {
	return &IngredientService{db: db}
}

func (s *IngredientService) List(ownerID uuid.UUID, assignedOnly bool) ([]models.Ingredient, error) {
	q := s.db.Model(&models.Ingredient{}).Scopes(owner.Scope(ownerID))
	if assignedOnly {
		q = q.Joins("JOIN recipe_ingredients ON recipe_ingredients.ingredient_id = ingredients.id").
			Distinct("ingredients.*")
	}

	var ingredients []models.Ingredient
	if err := q.Order("ingredients.name DESC").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *IngredientService) get(ownerID, ingredientID uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := s.db.Scopes(owner.Scope(ownerID)).First(&ingredient, "id = ?", ingredientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIngredientNotFound
		}
		return nil, fmt.Errorf("failed to load ingredient: %w", err)
	}
	return &ingredient, nil
}

func (s *IngredientService) Update(ownerID, ingredientID uuid.UUID, name string) (*models.Ingredient, error) {
	ingredient, err := s.get(ownerID, ingredientID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankRelationName
	}

	var existing models.Ingredient
	err = s.db.Scopes(owner.Scope(ownerID)).
		Where("name = ? AND id <> ?", name, ingredientID).
		First(&existing).Error
	if err == nil {
		return nil, ErrIngredientNameTaken
	}

	if err := s.db.Model(ingredient).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("failed to update ingredient: %w", err)
	}
	ingredient.Name = name
	return ingredient, nil
}

func (s *IngredientService) Delete(ownerID, ingredientID uuid.UUID) error {
	ingredient, err := s.get(ownerID, ingredientID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM recipe_ingredients WHERE ingredient_id = ?", ingredient.ID).Error; err != nil {
			return fmt.Errorf("failed to detach ingredient: %w", err)
		}
		if err := tx.Delete(ingredient).Error; err != nil {
			return fmt.Errorf("failed to delete ingredient: %w", err)
		}
		return nil
	})
}
