package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oxhq/quill/models"
)

// SaveModule upserts a module row under its (namespace, name) identity.
func SaveModule(db *gorm.DB, m *models.Module) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"api_header", "types", "procedures", "initializers", "unwrappers", "target_blob", "updated_at",
		}),
	}).Create(m).Error
}

// FindModule loads one module by identity.
func FindModule(db *gorm.DB, namespace, name string) (*models.Module, error) {
	var m models.Module
	err := db.Where("namespace = ? AND name = ?", namespace, name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("module %s/%s not found in the archive store", namespace, name)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListModules returns every stored module in identity order.
func ListModules(db *gorm.DB) ([]models.Module, error) {
	var out []models.Module
	if err := db.Order("namespace, name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
