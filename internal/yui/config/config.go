// Package config loads Yui's configuration from the environment.
//
// Values are read with the common/environment helpers after an optional
// .env file has been applied, then checked with struct-tag validation so
// every problem is reported in a single error.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/bdobrica/yui/common/environment"
)

// Defaults for optional settings.
const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "openai/gpt-4o"
	DefaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	DefaultGroqModel         = "llama-3.3-70b-versatile"
	DefaultEncoding          = "r50k_base"
)

// MatrixConfig is only required when running against a homeserver.
type MatrixConfig struct {
	Homeserver   string   `env:"MATRIX_HOMESERVER" validate:"required,url"`
	UserID       string   `env:"MATRIX_USER_ID" validate:"required,startswith=@"`
	AccessToken  string   `env:"MATRIX_ACCESS_TOKEN" validate:"required"`
	AllowedRooms []string `env:"MATRIX_ALLOWED_ROOMS"`
	AutoJoin     bool     `env:"MATRIX_AUTO_JOIN"`
}

// Config is the full runtime configuration.
type Config struct {
	Matrix MatrixConfig

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY" validate:"required"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" validate:"required,url"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" validate:"required"`

	GroqAPIKey  string `env:"GROQ_API_KEY" validate:"required"`
	GroqBaseURL string `env:"GROQ_BASE_URL" validate:"required,url"`
	GroqModel   string `env:"GROQ_MODEL" validate:"required"`

	RemoteMaxTokens   int           `env:"REMOTE_MAX_TOKENS" validate:"gt=0"`
	RemoteTimeout     time.Duration `env:"REMOTE_TIMEOUT" validate:"gt=0"`
	RemoteMaxAttempts int           `env:"REMOTE_MAX_ATTEMPTS" validate:"gte=1"`

	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" validate:"gt=0"`

	PatternCorpus string `env:"PATTERN_CORPUS" validate:"omitempty,file"`

	GeneratorEncoding     string  `env:"GENERATOR_ENCODING" validate:"required"`
	GeneratorCorpus       string  `env:"GENERATOR_CORPUS" validate:"omitempty,file"`
	GeneratorWindow       int     `env:"GENERATOR_WINDOW" validate:"gt=0"`
	GeneratorMaxLength    int     `env:"GENERATOR_MAX_LENGTH" validate:"gt=0"`
	GeneratorMinNewTokens int     `env:"GENERATOR_MIN_NEW_TOKENS" validate:"gt=0"`
	GeneratorTopK         int     `env:"GENERATOR_TOP_K" validate:"gte=0"`
	GeneratorTopP         float64 `env:"GENERATOR_TOP_P" validate:"gt=0,lte=1"`
	GeneratorSeed         int64   `env:"GENERATOR_SEED"`

	RateLimit int `env:"RATE_LIMIT" validate:"gt=0"`

	DatabasePath string `env:"DATABASE_PATH"`
	HTTPAddr     string `env:"HTTP_ADDR" validate:"omitempty,hostname_port"`

	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=text json"`
	LogFile   string `env:"LOG_FILE"`

	// malformed lists variables that were set but could not be parsed.
	malformed []string
}

// Load applies envFiles (".env" when none are given; missing files are
// ignored) and reads the configuration from the environment. It does not
// validate.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set.
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment.
func FromEnv() *Config {
	var env environment.Reader
	c := &Config{
		Matrix: MatrixConfig{
			Homeserver:   environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:       environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken:  environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			AllowedRooms: environment.StringSliceOr("MATRIX_ALLOWED_ROOMS", nil),
			AutoJoin:     env.Bool("MATRIX_AUTO_JOIN", true),
		},

		OpenRouterAPIKey:  environment.StringOr("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: environment.StringOr("OPENROUTER_BASE_URL", DefaultOpenRouterBaseURL),
		OpenRouterModel:   environment.StringOr("OPENROUTER_MODEL", DefaultOpenRouterModel),

		GroqAPIKey:  environment.StringOr("GROQ_API_KEY", ""),
		GroqBaseURL: environment.StringOr("GROQ_BASE_URL", DefaultGroqBaseURL),
		GroqModel:   environment.StringOr("GROQ_MODEL", DefaultGroqModel),

		RemoteMaxTokens:   env.Int("REMOTE_MAX_TOKENS", 1000),
		RemoteTimeout:     env.Duration("REMOTE_TIMEOUT", 60*time.Second),
		RemoteMaxAttempts: env.Int("REMOTE_MAX_ATTEMPTS", 2),

		MaxMessageLength: env.Int("MAX_MESSAGE_LENGTH", 2000),

		PatternCorpus: environment.StringOr("PATTERN_CORPUS", ""),

		GeneratorEncoding:     environment.StringOr("GENERATOR_ENCODING", DefaultEncoding),
		GeneratorCorpus:       environment.StringOr("GENERATOR_CORPUS", ""),
		GeneratorWindow:       env.Int("GENERATOR_WINDOW", 1024),
		GeneratorMaxLength:    env.Int("GENERATOR_MAX_LENGTH", 1000),
		GeneratorMinNewTokens: env.Int("GENERATOR_MIN_NEW_TOKENS", 48),
		GeneratorTopK:         env.Int("GENERATOR_TOP_K", 50),
		GeneratorTopP:         env.Float("GENERATOR_TOP_P", 0.9),
		GeneratorSeed:         env.Int64("GENERATOR_SEED", 0),

		RateLimit: env.Int("RATE_LIMIT", 20),

		DatabasePath: environment.StringOr("DATABASE_PATH", ""),
		HTTPAddr:     environment.StringOr("HTTP_ADDR", ""),

		LogLevel:  strings.ToLower(environment.StringOr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(environment.StringOr("LOG_FORMAT", "text")),
		LogFile:   environment.StringOr("LOG_FILE", ""),
	}
	c.malformed = env.Malformed()
	return c
}

// Validate checks the configuration needed to run against Matrix.
func (c *Config) Validate() error {
	return describe(newValidator().Struct(c), c.malformed)
}

// ValidateForConsole checks everything except the Matrix section.
func (c *Config) ValidateForConsole() error {
	var malformed []string
	for _, name := range c.malformed {
		if !strings.HasPrefix(name, "MATRIX_") {
			malformed = append(malformed, name)
		}
	}
	return describe(newValidator().StructExcept(c, "Matrix"), malformed)
}

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// describe folds validation errors and unparsable variables into one error
// naming every missing variable and every invalid one.
func describe(err error, malformed []string) error {
	if err == nil && len(malformed) == 0 {
		return nil
	}
	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}

	var missing, invalid []string
	for _, name := range malformed {
		invalid = append(invalid, name+" (malformed)")
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), rule(fe)))
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid variables: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("config: %s", strings.Join(parts, "; "))
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
