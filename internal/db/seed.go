package db

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"scribber/internal/model"
)

// seedEntry mirrors one catalog entry in the seed YAML file.
type seedEntry struct {
	Name        string         `yaml:"name"`
	DisplayName string         `yaml:"display_name"`
	Provider    string         `yaml:"provider"`
	ModelType   string         `yaml:"model_type"`
	APIEndpoint string         `yaml:"api_endpoint"`
	IsActive    *bool          `yaml:"is_active"`
	IsDefault   bool           `yaml:"is_default"`
	Config      map[string]any `yaml:"config"`
	Description string         `yaml:"description"`
}

type seedFile struct {
	Models []seedEntry `yaml:"models"`
}

// SeedModels loads the default model catalog from a YAML file and inserts
// any entry whose name is not already present. Existing rows are left
// untouched so operator edits survive restarts.
func SeedModels(ctx context.Context, gdb *gorm.DB, path string, log zerolog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("model seed file not found, skipping")
			return nil
		}
		return fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, e := range f.Models {
		var count int64
		if err := gdb.WithContext(ctx).Model(&model.ModelConfig{}).Where("name = ?", e.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		m := model.ModelConfig{
			Name:        e.Name,
			DisplayName: e.DisplayName,
			Provider:    model.ModelProvider(e.Provider),
			ModelType:   model.ModelType(e.ModelType),
			IsActive:    true,
			IsDefault:   e.IsDefault,
		}
		if e.IsActive != nil {
			m.IsActive = *e.IsActive
		}
		if e.APIEndpoint != "" {
			m.APIEndpoint = &e.APIEndpoint
		}
		if e.Description != "" {
			m.Description = &e.Description
		}
		if len(e.Config) > 0 {
			blob, err := yamlMapToJSON(e.Config)
			if err != nil {
				return fmt.Errorf("seed entry %q: %w", e.Name, err)
			}
			m.ConfigJSON = &blob
		}

		if err := gdb.WithContext(ctx).Create(&m).Error; err != nil {
			return fmt.Errorf("seed entry %q: %w", e.Name, err)
		}
		created++
	}

	if created > 0 {
		log.Info().Int("created", created).Msg("seeded model catalog")
	}
	return nil
}

func yamlMapToJSON(m map[string]any) (string, error) {
	// go-yaml decodes nested maps as map[string]any, so a straight JSON
	// re-encode is enough.
	b, err := yaml.MarshalWithOptions(m, yaml.JSON())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
