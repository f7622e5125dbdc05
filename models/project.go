package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ProjectNumber int       `gorm:"uniqueIndex;not null" json:"project_number"`
	Name          string    `gorm:"size:255" json:"name"`
	Status        string    `gorm:"size:45;default:Active" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindOrCreateProject ensures the parent project row for a project number
// exists. Auto-created projects get a placeholder name until someone renames
// them.
func FindOrCreateProject(ctx context.Context, tx *gorm.DB, projectNumber int) *Project {
	lookup := Filter{Column: "project_number", Value: projectNumber}

	if existing := Search[Project](ctx, tx, lookup).First(); existing != nil {
		return existing
	}
	project := Project{
		ProjectNumber: projectNumber,
		Name:          fmt.Sprintf("%d_untitled", projectNumber),
	}
	return Create(ctx, tx, &project, lookup)
}
