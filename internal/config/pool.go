package config

import "time"

// PoolConfig holds relay pool settings.
type PoolConfig struct {
	Relays                 []string        `mapstructure:"RELAYS"                   json:"relays"                   validate:"omitempty,dive,relay_url"`
	SubscribeKinds         []int           `mapstructure:"SUBSCRIBE_KINDS"          json:"subscribe_kinds"          validate:"omitempty,dive,min=0,max=65535"`
	KeepAliveInterval      time.Duration   `mapstructure:"KEEP_ALIVE_INTERVAL"      json:"keep_alive_interval"      validate:"required,reasonable_duration"`
	WriteTimeout           time.Duration   `mapstructure:"WRITE_TIMEOUT"            json:"write_timeout"            validate:"required,timeout_duration"`
	CommandBufferSize      int             `mapstructure:"COMMAND_BUFFER_SIZE"      json:"command_buffer_size"      validate:"required,min=1,max=4096"`
	EventBufferSize        int             `mapstructure:"EVENT_BUFFER_SIZE"        json:"event_buffer_size"        validate:"required,min=1,max=65536"`
	NotificationBufferSize int             `mapstructure:"NOTIFICATION_BUFFER_SIZE" json:"notification_buffer_size" validate:"required,min=1,max=65536"`
	DedupEstimatedEvents   uint            `mapstructure:"DEDUP_ESTIMATED_EVENTS"   json:"dedup_estimated_events"   validate:"required,min=1000"`
	DedupFalsePositiveRate float64         `mapstructure:"DEDUP_FALSE_POSITIVE_RATE" json:"dedup_false_positive_rate" validate:"required,gt=0,lt=1"`
	Reconnect              ReconnectConfig `mapstructure:"RECONNECT"                json:"reconnect"`
}

// ReconnectConfig holds reconnect supervisor settings.
type ReconnectConfig struct {
	Enabled           bool          `mapstructure:"ENABLED"             json:"enabled"`
	ScanInterval      time.Duration `mapstructure:"SCAN_INTERVAL"       json:"scan_interval"       validate:"omitempty,reasonable_duration"`
	AttemptsPerMinute int           `mapstructure:"ATTEMPTS_PER_MINUTE" json:"attempts_per_minute" validate:"omitempty,min=1,max=600"`
	Burst             int           `mapstructure:"BURST"               json:"burst"               validate:"omitempty,min=1,max=100"`
	Workers           int           `mapstructure:"WORKERS"             json:"workers"             validate:"omitempty,min=1,max=64"`
}
