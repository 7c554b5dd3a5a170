package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration
type Config struct {
	Debounce  time.Duration   `mapstructure:"debounce" validate:"gte=0"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Export    ExportConfig    `mapstructure:"export"`
	Resources ResourcesConfig `mapstructure:"resources"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Lists     []FilterList    `mapstructure:"lists" validate:"dive"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Retries int           `mapstructure:"retries" validate:"gte=0,lte=10"`
}

// EngineConfig bounds engine construction
type EngineConfig struct {
	MaxRules int `mapstructure:"max_rules" validate:"gte=0"`
}

// ExportConfig controls the serialized engine download
type ExportConfig struct {
	Format string `mapstructure:"format" validate:"omitempty,oneof=dat json DAT JSON"`
	Dir    string `mapstructure:"dir"`
}

// ResourcesConfig points at a resources.json to preload
type ResourcesConfig struct {
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	File  string `mapstructure:"file"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name" validate:"required"`
	URL     string `mapstructure:"url" validate:"required,url"`
	Enabled bool   `mapstructure:"enabled"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}

var configValidate = validator.New()

// Validate checks the decoded config and reports every offending field
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("config %s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Join(errs...)
}
