package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/japaniel/bookdeck/pkg/filter"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError lists every field that failed its struct tag rules.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		msgs = append(msgs, describe(fe))
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Fields }

func describe(fe validator.FieldError) string {
	name := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be >= %s (got %v)", name, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be <= %s (got %v)", name, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", name, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %q)", name, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL (got %q)", name, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

// Validate checks the struct tag rules and the business rules that span
// fields, then fills in paths derived from data_dir. Load calls it
// automatically; call it again after overriding fields from flags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			return &ValidationError{Fields: fields}
		}
		return err
	}

	if _, err := filter.ParseLevel(c.ExcludeUpTo); err != nil {
		return fmt.Errorf("exclude_up_to: %w", err)
	}
	if c.Dictionary.Provider == "offline" && c.Dictionary.OfflinePath == "" {
		return fmt.Errorf("dictionary.offline_path is required for the offline provider")
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval (%v) must be >= retry.initial_interval (%v)",
			c.Retry.MaxInterval, c.Retry.InitialInterval)
	}

	c.resolvePaths()
	return nil
}

func (c *Config) resolvePaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "bookdeck.db")
	}
	if c.Cache.BoltPath == "" {
		c.Cache.BoltPath = filepath.Join(c.DataDir, "cache.bolt")
	}
	if c.LevelsDir == "" {
		c.LevelsDir = filepath.Join(c.DataDir, "levels")
	}
	if c.PhrasebookPath == "" {
		c.PhrasebookPath = filepath.Join(c.DataDir, "phrasebook.tsv")
	}
	if c.StopwordsPath == "" {
		c.StopwordsPath = filepath.Join(c.DataDir, "stopwords.txt")
	}
	if c.NamesPath == "" {
		c.NamesPath = filepath.Join(c.DataDir, "names.txt")
	}
	if c.Media.Dir == "" {
		c.Media.Dir = filepath.Join(c.DataDir, "media")
	}
}

// Level returns the parsed exclude_up_to ceiling.
func (c *Config) Level() filter.Level {
	lvl, err := filter.ParseLevel(c.ExcludeUpTo)
	if err != nil {
		return filter.LevelNone
	}
	return lvl
}
