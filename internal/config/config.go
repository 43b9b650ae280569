package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"slackbrew/internal/domain"
)

type Config struct {
	Untappd  UntappdConfig  `yaml:"untappd"`
	Slack    SlackConfig    `yaml:"slack"`
	History  *HistoryConfig `yaml:"history,omitempty"`
	AMQP     *AMQPConfig    `yaml:"amqp,omitempty"`
	LogLevel string         `yaml:"log_level"`

	path string
	raw  []byte
}

type UntappdConfig struct {
	BaseURL         string   `yaml:"base_url"`
	ClientID        string   `yaml:"id"`
	ClientSecret    string   `yaml:"secret"`
	AccessToken     string   `yaml:"token"`
	LastSeen        int64    `yaml:"lastseen"`
	Users           []string `yaml:"users"`
	Timeout         Duration `yaml:"timeout"`
	DisplayMedia    bool     `yaml:"display_media"`
	DisplayBadges   *bool    `yaml:"display_badges"`
	DisplayAppLinks bool     `yaml:"display_app_links"`
}

// Duration accepts both "10s" style strings and bare integers, which are
// read as seconds the way the historical config format did.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type SlackConfig struct {
	Token      string `yaml:"token"`
	WebhookURL string `yaml:"webhook_url"`
}

type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

// Load reads the configuration file, expanding ${VAR} references from the
// environment (a .env file alongside the process is honored). When the file
// does not exist a commented template is written to the requested path so
// the user has something to edit, and the load fails with
// domain.ErrConfigMissing.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := writeTemplate(path); werr != nil {
			return nil, fmt.Errorf("create template %s: %w", path, werr)
		}
		return nil, fmt.Errorf("%w: wrote a template to %s, please edit it to reflect your API information", domain.ErrConfigMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.path = path
	cfg.raw = data
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Untappd.BaseURL == "" {
		c.Untappd.BaseURL = "https://api.untappd.com/v4"
	}
	if c.Untappd.Timeout == 0 {
		c.Untappd.Timeout = Duration(10 * time.Second)
	}
	if c.Slack.WebhookURL == "" && c.Slack.Token != "" {
		c.Slack.WebhookURL = "https://hooks.slack.com/services/" + c.Slack.Token
	}
	if c.History != nil && c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.AMQP != nil {
		if c.AMQP.Exchange == "" {
			c.AMQP.Exchange = "slackbrew"
		}
		if c.AMQP.RoutingKey == "" {
			c.AMQP.RoutingKey = "notifications"
		}
		if c.AMQP.QueueName == "" {
			c.AMQP.QueueName = "slackbrew_notifications"
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// BadgesEnabled reports whether badge notifications should be sent.
// Absent means enabled, matching the historical default.
func (c *Config) BadgesEnabled() bool {
	return c.Untappd.DisplayBadges == nil || *c.Untappd.DisplayBadges
}

// LastSeen returns the stored watermark.
func (c *Config) LastSeen() int64 {
	return c.Untappd.LastSeen
}

// SetLastSeen persists a new watermark. The rewrite edits the lastseen
// scalar inside the raw on-disk document, so ${VAR} placeholders and
// comments survive and expanded secrets are never written back. A call
// with the current value is a no-op and touches nothing.
func (c *Config) SetLastSeen(id int64) error {
	if id == c.Untappd.LastSeen {
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(c.raw, &doc); err != nil {
		return fmt.Errorf("%w: reparse %s: %v", domain.ErrConfigWrite, c.path, err)
	}
	setLastSeenNode(&doc, id)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrConfigWrite, c.path, err)
	}
	if err := os.WriteFile(c.path, out, 0o600); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrConfigWrite, c.path, err)
	}

	c.Untappd.LastSeen = id
	c.raw = out
	return nil
}

func setLastSeenNode(doc *yaml.Node, id int64) {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return
	}

	untappd := mappingValue(root, "untappd")
	if untappd == nil || untappd.Kind != yaml.MappingNode {
		untappd = &yaml.Node{Kind: yaml.MappingNode}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "untappd"},
			untappd,
		)
	}

	val := fmt.Sprintf("%d", id)
	if existing := mappingValue(untappd, "lastseen"); existing != nil {
		existing.Tag = "!!int"
		existing.Value = val
		existing.Style = 0
		return
	}
	untappd.Content = append(untappd.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "lastseen"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: val},
	)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

const template = `# slackbrew configuration
untappd:
  id: your_client_id
  secret: your_client_secret
  token: your_access_token
  # Highest check-in id already relayed. Maintained automatically.
  lastseen: 0
  # Untappd usernames to relay check-ins for.
  users:
    - someuser
  timeout: 10s
  display_media: true
  display_badges: true
  display_app_links: false

slack:
  # The secret part of your incoming webhook URL, i.e. everything after
  # https://hooks.slack.com/services/
  token: T00000000/B00000000/XXXXXXXXXXXXXXXXXXXXXXXX

log_level: info
`

func writeTemplate(path string) error {
	return os.WriteFile(path, []byte(template), 0o600)
}
