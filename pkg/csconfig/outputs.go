package csconfig

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

type OutputsCfg struct {
	LogFile *FileOutputCfg  `yaml:"log_file,omitempty"`
	Kafka   *KafkaOutputCfg `yaml:"kafka,omitempty"`
	Slack   *SlackOutputCfg `yaml:"slack,omitempty"`
}

// FileOutputCfg configures the JSON-lines attack log.
type FileOutputCfg struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
	MaxSize  int    `yaml:"max_size,omitempty"`
	MaxFiles int    `yaml:"max_files,omitempty"`
	MaxAge   int    `yaml:"max_age,omitempty"`
	Compress *bool  `yaml:"compress,omitempty"`
}

type KafkaOutputCfg struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	BatchSize    int      `yaml:"batch_size,omitempty"`
	BatchTimeout string   `yaml:"batch_timeout,omitempty"`
	WriteTimeout string   `yaml:"write_timeout,omitempty"`

	BatchTimeoutDuration time.Duration `yaml:"-"`
	WriteTimeoutDuration time.Duration `yaml:"-"`
}

type SlackOutputCfg struct {
	Webhook     string `yaml:"webhook"`
	Channel     string `yaml:"channel,omitempty"`
	Username    string `yaml:"username,omitempty"`
	IconEmoji   string `yaml:"icon_emoji,omitempty"`
	IconURL     string `yaml:"icon_url,omitempty"`
	MinSeverity string `yaml:"min_severity,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
	// MaxPerMinute caps the posted messages, the surplus is dropped. 0 means no cap.
	MaxPerMinute *int `yaml:"max_per_minute,omitempty"`

	TimeoutDuration time.Duration `yaml:"-"`
}

func (c *Config) LoadOutputs() error {
	if c.Outputs == nil {
		c.Outputs = &OutputsCfg{}
	}

	oc := c.Outputs

	if oc.LogFile == nil {
		oc.LogFile = &FileOutputCfg{}
	}

	if err := c.loadFileOutput(oc.LogFile); err != nil {
		return err
	}

	if oc.Kafka != nil {
		if err := loadKafkaOutput(oc.Kafka); err != nil {
			return err
		}
	}

	if oc.Slack != nil {
		if err := loadSlackOutput(oc.Slack); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) loadFileOutput(fc *FileOutputCfg) error {
	if fc.Enabled == nil {
		fc.Enabled = ptr.Of(true)
	}

	if fc.Path == "" {
		logDir := "./logs"
		if c.Common != nil && c.Common.LogDir != "" {
			logDir = c.Common.LogDir
		}

		fc.Path = filepath.Join(logDir, "attacks.jsonl")
	}

	if fc.MaxSize == 0 {
		fc.MaxSize = defLogMaxSize
	}

	if fc.MaxFiles == 0 {
		fc.MaxFiles = defLogMaxFiles
	}

	if fc.MaxAge == 0 {
		fc.MaxAge = defLogMaxAge
	}

	if fc.Compress == nil {
		fc.Compress = ptr.Of(false)
	}

	return ensureAbsolutePath(&fc.Path)
}

func loadKafkaOutput(kc *KafkaOutputCfg) error {
	if len(kc.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}

	if kc.Topic == "" {
		return errors.New("kafka: topic is required")
	}

	if kc.BatchSize == 0 {
		kc.BatchSize = 100
	}

	var err error

	if kc.BatchTimeoutDuration, err = parsePositiveDuration("kafka.batch_timeout", &kc.BatchTimeout, "1s"); err != nil {
		return err
	}

	if kc.WriteTimeoutDuration, err = parsePositiveDuration("kafka.write_timeout", &kc.WriteTimeout, "10s"); err != nil {
		return err
	}

	return nil
}

func loadSlackOutput(sc *SlackOutputCfg) error {
	if sc.Webhook == "" {
		return errors.New("slack: webhook is required")
	}

	if sc.Username == "" {
		sc.Username = "sentinel"
	}

	if sc.IconEmoji == "" && sc.IconURL == "" {
		sc.IconEmoji = ":rotating_light:"
	}

	switch sc.MinSeverity {
	case "":
		sc.MinSeverity = "high"
	case "low", "medium", "high":
	default:
		return errors.New("slack: min_severity must be one of low, medium, high")
	}

	if sc.MaxPerMinute == nil {
		sc.MaxPerMinute = ptr.Of(30)
	}

	if *sc.MaxPerMinute < 0 {
		return errors.New("slack: max_per_minute can't be negative")
	}

	var err error

	sc.TimeoutDuration, err = parsePositiveDuration("slack.timeout", &sc.Timeout, "10s")

	return err
}
