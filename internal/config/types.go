// Package config loads the bot configuration from JSON or YAML, with
// strict decoding and optional hot reload.
package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`

	// Scheduler controls the optional background actualize sweep. The
	// lazy per-request sweep always runs; this only bounds how long an
	// idle deployment can lag behind the calendar.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Tasks tunes engine defaults. Zero values fall back to the
	// built-in constants (period 4, three tasks per day).
	Tasks TasksConfig `json:"tasks"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is the chat id warnings are forwarded to when
	// logging.chat is enabled.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./repeatbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression; empty means shortly after midnight.
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type TasksConfig struct {
	DefaultPeriod int `json:"default_period,omitempty"`
	PerDayLimit   int `json:"per_day_limit,omitempty"`
}
