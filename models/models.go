// Package models holds the gorm models of the module archive store.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/oxhq/quill/internal/analyzer"
)

// Module is one compiled dependency module: its unique descriptor, the API
// header text the compiler emitted for tooling, the decoded export tables
// the checker binds from, and the target-language codegen blob.
type Module struct {
	ID uint `gorm:"primaryKey"`

	// Unique descriptor: project namespace + unique name.
	Namespace string `gorm:"type:varchar(100);not null;uniqueIndex:idx_modules_identity"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex:idx_modules_identity"`

	// API surface.
	APIHeader    string         `gorm:"type:text"`
	Types        datatypes.JSON `gorm:"type:jsonb"` // []analyzer.ExportedType
	Procedures   datatypes.JSON `gorm:"type:jsonb"` // []analyzer.ExportedProc
	Initializers datatypes.JSON `gorm:"type:jsonb"` // map[string][]string
	Unwrappers   datatypes.JSON `gorm:"type:jsonb"` // map[string][]string

	// Generated target source; opaque to the checker.
	TargetBlob []byte `gorm:"type:blob"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Module) TableName() string { return "modules" }

// API decodes the stored export tables into the checker's view.
func (m *Module) API() (analyzer.ModuleAPI, error) {
	api := analyzer.ModuleAPI{Namespace: m.Namespace, Name: m.Name}
	if len(m.Types) > 0 {
		if err := json.Unmarshal(m.Types, &api.Types); err != nil {
			return api, fmt.Errorf("module %s/%s: decoding types: %w", m.Namespace, m.Name, err)
		}
	}
	if len(m.Procedures) > 0 {
		if err := json.Unmarshal(m.Procedures, &api.Procedures); err != nil {
			return api, fmt.Errorf("module %s/%s: decoding procedures: %w", m.Namespace, m.Name, err)
		}
	}
	if len(m.Initializers) > 0 {
		if err := json.Unmarshal(m.Initializers, &api.Initializers); err != nil {
			return api, fmt.Errorf("module %s/%s: decoding initializers: %w", m.Namespace, m.Name, err)
		}
	}
	if len(m.Unwrappers) > 0 {
		if err := json.Unmarshal(m.Unwrappers, &api.Unwrappers); err != nil {
			return api, fmt.Errorf("module %s/%s: decoding unwrappers: %w", m.Namespace, m.Name, err)
		}
	}
	return api, nil
}

// FromAPI builds the storable row for a module's exported surface.
func FromAPI(api analyzer.ModuleAPI, header string, targetBlob []byte) (Module, error) {
	m := Module{
		Namespace:  api.Namespace,
		Name:       api.Name,
		APIHeader:  header,
		TargetBlob: targetBlob,
	}
	var err error
	if m.Types, err = json.Marshal(api.Types); err != nil {
		return m, err
	}
	if m.Procedures, err = json.Marshal(api.Procedures); err != nil {
		return m, err
	}
	if m.Initializers, err = json.Marshal(api.Initializers); err != nil {
		return m, err
	}
	if m.Unwrappers, err = json.Marshal(api.Unwrappers); err != nil {
		return m, err
	}
	return m, nil
}
