package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load over an arbitrary lookup, such as a map in tests. An empty
// value counts as unset.
func LoadFrom(lookup func(string) string) (*Config, error) {
	cfg := &Config{}

	l := envLoader{lookup: lookup}
	l.fill(reflect.ValueOf(cfg).Elem())
	if len(l.missing) > 0 {
		return nil, fmt.Errorf("config load: required environment variables not set: %s",
			strings.Join(l.missing, ", "))
	}
	if l.err != nil {
		return nil, fmt.Errorf("config load: %w", l.err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// envLoader walks a config struct and fills fields tagged with
// env, envAlt, default and required. It keeps going after a missing
// required variable so every one of them is reported together.
type envLoader struct {
	lookup  func(string) string
	missing []string
	err     error
}

func (l *envLoader) fill(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField() && l.err == nil; i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != timeType {
			l.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value, ok := l.value(field.Tag)
		if !ok {
			if field.Tag.Get("required") == "true" {
				l.missing = append(l.missing, name)
			}
			continue
		}
		if err := setField(fv, value); err != nil {
			l.err = fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}
}

// value resolves env, then envAlt, then default.
func (l *envLoader) value(tag reflect.StructTag) (string, bool) {
	for _, key := range []string{tag.Get("env"), tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if v := l.lookup(key); v != "" {
			return v, true
		}
	}
	if tag.Get("required") == "true" {
		return "", false
	}
	def := tag.Get("default")
	return def, def != ""
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := parseInt(value)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, field.Type())
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem())
		}
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// parseInt accepts plain integers and byte sizes such as "20MB".
func parseInt(value string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, s := range sizeSuffixes {
		if n, ok := strings.CutSuffix(upper, s.suffix); ok {
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size: %w", err)
			}
			return i * s.mult, nil
		}
	}
	i, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	return i, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Sync.Threshold <= 0 {
		errs = append(errs, "SYNC_DAY_HOSPITAL_THRESHOLD must be positive")
	}
	if c.Sync.MaxFileSize <= 0 {
		errs = append(errs, "SYNC_MAX_FILE_SIZE must be positive")
	}
	if c.Sync.Timeout <= 0 {
		errs = append(errs, "SYNC_TIMEOUT must be positive")
	}
	if c.Sync.LockWait < 0 {
		errs = append(errs, "SYNC_LOCK_WAIT must be non-negative")
	}

	if c.Redis.Address != "" && c.Redis.LockTTL <= c.Sync.Timeout {
		errs = append(errs, fmt.Sprintf("SYNC_LOCK_TTL (%s) must exceed SYNC_TIMEOUT (%s)",
			c.Redis.LockTTL, c.Sync.Timeout))
	}

	if c.Schedule.Enabled {
		if _, err := time.Parse("15:04", c.Schedule.Time); err != nil {
			errs = append(errs, fmt.Sprintf("SCHEDULE_TIME (%q) must be HH:MM", c.Schedule.Time))
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("SCHEDULE_TIMEZONE (%q) is not a known zone", c.Schedule.Timezone))
		}
		switch {
		case c.Schedule.GCSBucket != "" && c.Schedule.GCSObject == "":
			errs = append(errs, "SCHEDULE_GCS_OBJECT is required when SCHEDULE_GCS_BUCKET is set")
		case c.Schedule.GCSBucket == "" && c.Schedule.File == "":
			errs = append(errs, "SCHEDULE_ENABLED needs SCHEDULE_GCS_BUCKET or SCHEDULE_FILE")
		}
	}

	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		errs = append(errs, "PUBSUB_TOPIC is set but PUBSUB_PROJECT_ID is empty")
	}

	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.SyncLimit <= 0) {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_SYNC must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String renders the config for startup logs with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Sync: {Threshold: %d, MaxFileSize: %d, Timeout: %s, AtomicApply: %v}, ",
		c.Sync.Threshold, c.Sync.MaxFileSize, c.Sync.Timeout, c.Sync.AtomicApply)
	fmt.Fprintf(&b, "Redis: {Enabled: %v, LockKey: %q}, ", c.Redis.Address != "", c.Redis.LockKey)
	fmt.Fprintf(&b, "Schedule: {Enabled: %v, Time: %q, Timezone: %q, GCS: %v}, ",
		c.Schedule.Enabled, c.Schedule.Time, c.Schedule.Timezone, c.Schedule.UsesGCS())
	fmt.Fprintf(&b, "PubSub: {Topic: %q}, ", c.PubSub.Topic)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
