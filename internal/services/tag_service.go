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
	ErrTagNotFound  = errors.New("tag not found")
	ErrTagNameTaken = errors.New("a tag with this name already exists")
)

type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

// List returns the owner's tags in reverse-alphabetical order. With
// assignedOnly set, only tags attached to at least one recipe are
// returned, each exactly once.
func (s *TagService) List(ownerID uuid.UUID, assignedOnly bool) ([]models.Tag, error) {
	q := s.db.Model(&models.Tag{}).Scopes(owner.Scope(ownerID))
	if assignedOnly {
		q = q.Joins("JOIN recipe_tags ON recipe_tags.tag_id = tags.id").Distinct("tags.*")
	}

	var tags []models.Tag
	if err := q.Order("tags.name DESC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *TagService) get(ownerID, tagID uuid.UUID) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.Scopes(owner.Scope(ownerID)).First(&tag, "id = ?", tagID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to load tag: %w", err)
	}
	return &tag, nil
}

func (s *TagService) Update(ownerID, tagID uuid.UUID, name string) (*models.Tag, error) {
	tag, err := s.get(ownerID, tagID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankRelationName
	}

	var existing models.Tag
	err = s.db.Scopes(owner.Scope(ownerID)).
		Where("name = ? AND id <> ?", name, tagID).
		First(&existing).Error
	if err == nil {
		return nil, ErrTagNameTaken
	}

	if err := s.db.Model(tag).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	tag.Name = name
	return tag, nil
}

// Delete removes the tag and its recipe attachments; the recipes that
// referenced it are untouched.
func (s *TagService) Delete(ownerID, tagID uuid.UUID) error {
	tag, err := s.get(ownerID, tagID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM recipe_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return fmt.Errorf("failed to detach tag: %w", err)
		}
		if err := tx.Delete(tag).Error; err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	})
}
