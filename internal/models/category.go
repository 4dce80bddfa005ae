package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategoryColor is used when a category is created without a color
const DefaultCategoryColor = "#3B82F6"

// Category groups tasks. Every task belongs to exactly one category.
type Category struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategories are created for every new user
var DefaultCategories = []Category{
	{Name: "Work", Color: "#3B82F6", IsDefault: true},
	{Name: "Personal", Color: "#10B981", IsDefault: true},
	{Name: "Health", Color: "#F59E0B", IsDefault: true},
	{Name: "Study", Color: "#8B5CF6", IsDefault: true},
}

// Subject is a study subject that accumulates focused time from timer sessions
type Subject struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Color        string    `json:"color"`
	TotalMinutes int       `json:"total_minutes"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubjectPalette is cycled through when a subject is created without a color
var SubjectPalette = []string{
	"#EF4444", "#F97316", "#F59E0B", "#EAB308", "#84CC16", "#22C55E",
	"#10B981", "#14B8A6", "#06B6D4", "#0EA5E9", "#3B82F6", "#6366F1",
	"#8B5CF6", "#A855F7", "#D946EF", "#EC4899", "#F43F5E",
}
