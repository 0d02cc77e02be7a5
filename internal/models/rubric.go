package models

import "time"

// Rubric is an ordered set of grading criteria authored by an instructor.
// It is treated as immutable once a grading job references it.
type Rubric struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	AuthorID  uint              `gorm:"not null" json:"author_id"`
	CreatedAt time.Time         `json:"created_at"`
	Criteria  []RubricCriterion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
}

// RubricCriterion is a single scored dimension of a rubric.
type RubricCriterion struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	RubricID    uint    `gorm:"not null;index" json:"rubric_id"`
	Position    int     `gorm:"not null" json:"position"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	MaxScore    float64 `gorm:"not null" json:"max_score"`
	Weight      float64 `gorm:"not null;default:1" json:"weight"`
}
