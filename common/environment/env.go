// Package environment reads typed configuration values from environment
// variables.
//
// Every helper falls back to a caller-supplied default when the variable is
// unset or empty. The *Or helpers also fall back when a value is malformed;
// a Reader does the same but remembers the variable, so the config layer can
// report every problem at once.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the value of the named environment variable, or defaultValue
// if the variable is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// BoolOr parses the named variable with strconv.ParseBool.
func BoolOr(name string, defaultValue bool) bool {
	return parse(nil, name, defaultValue, strconv.ParseBool)
}

// IntOr parses the named variable as a decimal integer.
func IntOr(name string, defaultValue int) int {
	return parse(nil, name, defaultValue, strconv.Atoi)
}

// Int64Or parses the named variable as a signed 64-bit integer. Sampling
// seeds use the full range, which IntOr cannot express on 32-bit targets.
func Int64Or(name string, defaultValue int64) int64 {
	return parse(nil, name, defaultValue, parseInt64)
}

// FloatOr parses the named variable as a float64 (e.g. "0.9").
func FloatOr(name string, defaultValue float64) float64 {
	return parse(nil, name, defaultValue, parseFloat)
}

// DurationOr parses the named variable as a time.Duration ("30s", "2m").
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	return parse(nil, name, defaultValue, time.ParseDuration)
}

// StringSliceOr parses the named variable as a comma-separated list, trimming
// whitespace and dropping empty elements.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// Reader is the *Or helpers plus a record of malformed variables. The zero
// value is ready to use.
type Reader struct {
	malformed []string
}

// Bool is BoolOr.
func (r *Reader) Bool(name string, defaultValue bool) bool {
	return parse(r, name, defaultValue, strconv.ParseBool)
}

// Int is IntOr.
func (r *Reader) Int(name string, defaultValue int) int {
	return parse(r, name, defaultValue, strconv.Atoi)
}

// Int64 is Int64Or.
func (r *Reader) Int64(name string, defaultValue int64) int64 {
	return parse(r, name, defaultValue, parseInt64)
}

// Float is FloatOr.
func (r *Reader) Float(name string, defaultValue float64) float64 {
	return parse(r, name, defaultValue, parseFloat)
}

// Duration is DurationOr.
func (r *Reader) Duration(name string, defaultValue time.Duration) time.Duration {
	return parse(r, name, defaultValue, time.ParseDuration)
}

// Malformed returns the variables that were set but could not be parsed, in
// the order they were read.
func (r *Reader) Malformed() []string {
	return r.malformed
}

func parse[T any](r *Reader, name string, defaultValue T, fn func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	out, err := fn(v)
	if err != nil {
		if r != nil {
			r.malformed = append(r.malformed, name)
		}
		return defaultValue
	}
	return out
}

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
