// Package config loads bookdeck settings from YAML and the environment.
package config

import "time"

// Config is the root configuration of a bookdeck run.
type Config struct {
	OutputPath     string `yaml:"output_path"     env:"BOOKDECK_OUTPUT_PATH"`
	MinLength      int    `yaml:"min_length"      env:"BOOKDECK_MIN_LENGTH"      env-default:"3"    validate:"min=1"`
	ExcludeUpTo    string `yaml:"exclude_up_to"   env:"BOOKDECK_EXCLUDE_UP_TO"   env-default:"none"`
	MaxConcurrent  int    `yaml:"max_concurrent"  env:"BOOKDECK_MAX_CONCURRENT"  env-default:"20"   validate:"min=1,max=200"`
	DataDir        string `yaml:"data_dir"        env:"BOOKDECK_DATA_DIR"        env-default:"data" validate:"required"`
	DBPath         string `yaml:"db_path"         env:"BOOKDECK_DB_PATH"`
	LevelsDir      string `yaml:"levels_dir"      env:"BOOKDECK_LEVELS_DIR"`
	PhrasebookPath string `yaml:"phrasebook_path" env:"BOOKDECK_PHRASEBOOK_PATH"`
	StopwordsPath  string `yaml:"stopwords_path"  env:"BOOKDECK_STOPWORDS_PATH"`
	NamesPath      string `yaml:"names_path"      env:"BOOKDECK_NAMES_PATH"`
	StylePath      string `yaml:"style_path"      env:"BOOKDECK_STYLE_PATH"`

	Cache      CacheConfig      `yaml:"cache"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Retry      RetryConfig      `yaml:"retry"`
	Media      MediaConfig      `yaml:"media"`
	Log        LogConfig        `yaml:"log"`
}

// CacheConfig selects the lookup cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend"        env:"BOOKDECK_CACHE_BACKEND"        env-default:"sqlite" validate:"oneof=sqlite bolt"`
	BoltPath      string        `yaml:"bolt_path"      env:"BOOKDECK_CACHE_BOLT_PATH"`
	BatchSize     int           `yaml:"batch_size"     env:"BOOKDECK_CACHE_BATCH_SIZE"     env-default:"100"    validate:"min=1"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"BOOKDECK_CACHE_FLUSH_INTERVAL" env-default:"500ms"  validate:"gt=0"`
}

// DictionaryConfig configures the lexical data source.
type DictionaryConfig struct {
	Provider    string        `yaml:"provider"     env:"BOOKDECK_DICTIONARY_PROVIDER"     env-default:"freedict" validate:"oneof=freedict oald offline"`
	BaseURL     string        `yaml:"base_url"     env:"BOOKDECK_DICTIONARY_BASE_URL"     validate:"omitempty,url"`
	OfflinePath string        `yaml:"offline_path" env:"BOOKDECK_DICTIONARY_OFFLINE_PATH"`
	Timeout     time.Duration `yaml:"timeout"      env:"BOOKDECK_DICTIONARY_TIMEOUT"      env-default:"30s" validate:"gt=0"`
	RateLimit   int           `yaml:"rate_limit"   env:"BOOKDECK_DICTIONARY_RATE_LIMIT"   env-default:"100" validate:"min=0"`
}

// RetryConfig bounds the retries of one dictionary lookup.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"      env:"BOOKDECK_RETRY_MAX_RETRIES"      env-default:"3"     validate:"min=0,max=10"`
	InitialInterval time.Duration `yaml:"initial_interval" env:"BOOKDECK_RETRY_INITIAL_INTERVAL" env-default:"500ms" validate:"gt=0"`
	MaxInterval     time.Duration `yaml:"max_interval"     env:"BOOKDECK_RETRY_MAX_INTERVAL"     env-default:"5s"    validate:"gt=0"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"  env:"BOOKDECK_RETRY_ATTEMPT_TIMEOUT"  env-default:"15s"   validate:"gt=0"`
}

// MediaConfig controls pronunciation audio downloads.
type MediaConfig struct {
	Enabled bool   `yaml:"enabled" env:"BOOKDECK_MEDIA_ENABLED"`
	Dir     string `yaml:"dir"     env:"BOOKDECK_MEDIA_DIR"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"BOOKDECK_LOG_LEVEL"  env-default:"info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" env:"BOOKDECK_LOG_FORMAT" env-default:"text" validate:"oneof=text json"`
}
