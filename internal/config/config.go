package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/mova-viewer/internal/service/aggregator"
	"github.com/oshokin/mova-viewer/internal/service/alerting"
	"github.com/oshokin/mova-viewer/internal/source/poll"
)

// Source modes.
const (
	SourceReplay = "replay"
	SourcePoll   = "poll"
)

// Config holds the viewer settings.
type Config struct {
	// Source selects and configures the text producer.
	Source Source `yaml:"source"`
	// HistorySize is the number of finalized snapshots kept.
	HistorySize int `yaml:"history_size"`
	// DisplayQueueSize bounds the event and raw-line display queues.
	DisplayQueueSize int `yaml:"display_queue_size"`
	// Alerts holds the rule thresholds.
	Alerts Alerts `yaml:"alerts"`
	// Recording optionally copies every line to a file.
	Recording Recording `yaml:"recording"`
	// Archive optionally stores finalized snapshots in SQLite.
	Archive Archive `yaml:"archive"`
	// Notify optionally publishes alert transitions to NATS.
	Notify Notify `yaml:"notify"`
	// GRPCAddress is where the query API listens and where mova-ctl connects.
	GRPCAddress string `yaml:"grpc_addr"`
	// HTTPAddress is where the JSON API and /metrics listen. Empty disables it.
	HTTPAddress string `yaml:"http_addr"`
	// Timeout bounds individual RPC calls made by mova-ctl.
	Timeout time.Duration `yaml:"timeout"`
}

// Source configures the text producer.
type Source struct {
	// Mode is "replay" or "poll".
	Mode string `yaml:"mode"`
	// ReplayFile is the recording to replay; plain text or .lz4.
	ReplayFile string `yaml:"replay_file"`
	// Speed is the replay speed name, e.g. "fast200" or "step".
	Speed string `yaml:"speed"`
	// PollFile is the file polled for control text.
	PollFile string `yaml:"poll_file"`
	// ProcessName suspends polling while the named program is not running.
	ProcessName string `yaml:"process_name"`
	// PollInterval is clamped to 50ms..2s.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Alerts holds the alert rule thresholds.
type Alerts struct {
	Tick          time.Duration `yaml:"tick"`
	NoData        time.Duration `yaml:"no_data"`
	NoStageChange time.Duration `yaml:"no_stage_change"`
	NoOpt         time.Duration `yaml:"no_opt"`
	DemStuck      time.Duration `yaml:"dem_stuck"`
	HistorySize   int           `yaml:"history_size"`
}

// Recording configures the line recording.
type Recording struct {
	// Path enables recording at startup when set. A ".lz4" suffix compresses it.
	Path string `yaml:"path"`
	// FlushEvery is the number of lines between flushes; zero selects the default.
	FlushEvery int `yaml:"flush_every"`
}

// Archive configures the snapshot archive.
type Archive struct {
	// Path is the SQLite database file. Empty disables archiving.
	Path string `yaml:"path"`
}

// Notify configures alert publishing.
type Notify struct {
	// NATSURL is the NATS server. Empty disables publishing.
	NATSURL string `yaml:"nats_url"`
	// Subject is the subject alerts are published on.
	Subject string `yaml:"subject"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "mova-viewer.yaml"

	// DefaultGRPCAddress is the default query API address.
	DefaultGRPCAddress = "127.0.0.1:50061"

	// DefaultNotifySubject is the default NATS subject for alerts.
	DefaultNotifySubject = "mova.alerts"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrUnknownSourceMode is returned for a mode other than replay or poll.
	ErrUnknownSourceMode = errors.New("unknown source mode")
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeValue is returned for sizes and durations below zero.
	errNegativeValue = errors.New("value must not be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Validate cannot fail on an empty configuration.
	_ = Validate(cfg) //nolint:errcheck // See above.

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default path yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills unset values with defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if err := validateSource(&settings.Source); err != nil {
		return err
	}

	if settings.HistorySize < 0 || settings.DisplayQueueSize < 0 || settings.Recording.FlushEvery < 0 {
		return fmt.Errorf("sizes: %w", errNegativeValue)
	}

	if settings.HistorySize == 0 {
		settings.HistorySize = aggregator.DefaultHistorySize
	}

	if settings.DisplayQueueSize == 0 {
		settings.DisplayQueueSize = aggregator.DefaultDisplayQueueSize
	}

	if err := validateAlerts(&settings.Alerts); err != nil {
		return err
	}

	if settings.GRPCAddress == "" {
		settings.GRPCAddress = DefaultGRPCAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if settings.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if settings.Notify.Subject == "" {
		settings.Notify.Subject = DefaultNotifySubject
	}

	if settings.Notify.NATSURL != "" {
		if _, err := url.ParseRequestURI(settings.Notify.NATSURL); err != nil {
			return fmt.Errorf("invalid nats url: %w", err)
		}
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	return nil
}

func validateSource(source *Source) error {
	switch source.Mode {
	case "":
		source.Mode = SourceReplay
	case SourceReplay, SourcePoll:
	default:
		return fmt.Errorf("%w %q", ErrUnknownSourceMode, source.Mode)
	}

	if source.PollInterval < 0 {
		return fmt.Errorf("poll interval: %w", errNegativeValue)
	}

	source.PollInterval = poll.ClampInterval(source.PollInterval)

	return nil
}

func validateAlerts(alerts *Alerts) error {
	for _, d := range []time.Duration{
		alerts.Tick, alerts.NoData, alerts.NoStageChange, alerts.NoOpt, alerts.DemStuck,
	} {
		if d < 0 {
			return fmt.Errorf("alert thresholds: %w", errNegativeValue)
		}
	}

	if alerts.HistorySize < 0 {
		return fmt.Errorf("alert history size: %w", errNegativeValue)
	}

	if alerts.Tick == 0 {
		alerts.Tick = alerting.DefaultTickInterval
	}

	rules := alerting.DefaultConfig()

	if alerts.NoData == 0 {
		alerts.NoData = rules.NoData
	}

	if alerts.NoStageChange == 0 {
		alerts.NoStageChange = rules.NoStageChange
	}

	if alerts.NoOpt == 0 {
		alerts.NoOpt = rules.NoOpt
	}

	if alerts.DemStuck == 0 {
		alerts.DemStuck = rules.DemStuck
	}

	if alerts.HistorySize == 0 {
		alerts.HistorySize = rules.HistorySize
	}

	return nil
}

// Rules converts the thresholds for the alert engine.
func (a Alerts) Rules() alerting.Config {
	return alerting.Config{
		NoData:        a.NoData,
		NoStageChange: a.NoStageChange,
		NoOpt:         a.NoOpt,
		DemStuck:      a.DemStuck,
		HistorySize:   a.HistorySize,
	}
}
