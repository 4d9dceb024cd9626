package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recipe is the primary resource. Tags and ingredients are attached through
// plain join tables; the rows themselves are owned by the user and outlive
// any recipe that references them.
type Recipe struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	TimeMinutes int             `gorm:"not null" json:"time_minutes"`
	Price       decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"price"`
	Link        string          `gorm:"size:255" json:"link"`
	ImageKey    string          `gorm:"size:512" json:"-"`
	ImageURL    string          `gorm:"size:1024" json:"image_url"`
	Tags        []Tag           `gorm:"many2many:recipe_tags" json:"tags"`
	Ingredients []Ingredient    `gorm:"many2many:recipe_ingredients" json:"ingredients"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	User        User            `gorm:"foreignKey:UserID" json:"-"`
}

// Tag and Ingredient carry a compound unique index on (user_id, name) so
// concurrent get-or-create calls cannot produce duplicate rows for the same
// owner: the insert conflicts and the existing row is reselected.

type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tags_user_name" json:"-"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_tags_user_name" json:"name"`
	CreatedAt time.Time `json:"-"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

type Ingredient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ingredients_user_name" json:"-"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_ingredients_user_name" json:"name"`
	CreatedAt time.Time `json:"-"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}
