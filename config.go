package markserve

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config for the markdown server
type Config struct {
	// Address to listen on
	Address string `yaml:"address"`
	// Content is the directory of markdown pages
	Content string `yaml:"content"`
	// Static is the directory of assets served under /static/
	Static string `yaml:"static"`
	// Extension of the markdown pages
	Extension string `yaml:"extension"`
	// Template is an optional layout file replacing the built-in one
	Template string `yaml:"template"`
	// UnsafeHTML passes raw HTML in markdown through untouched
	UnsafeHTML bool `yaml:"unsafe_html"`
	// Live reloads the browser when files change
	Live     bool   `yaml:"live"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig serves ./contents and ./assets on 127.0.0.1:5173
func DefaultConfig() *Config {
	return &Config{
		Address:   "127.0.0.1:5173",
		Content:   "contents",
		Static:    "assets",
		Extension: ".md",
		LogLevel:  "info",
	}
}

// LoadConfig layers the defaults, an optional YAML file, MARKSERVE_*
// environment variables and then the command-line flags, each overriding
// the last.
func LoadConfig(args []string, getenv func(string) string) (*Config, error) {
	flagged := DefaultConfig()
	fset := flag.NewFlagSet("markserve", flag.ContinueOnError)
	configPath := fset.String("config", getenv("MARKSERVE_CONFIG"), "path to a YAML config file")
	fset.StringVar(&flagged.Address, "addr", flagged.Address, "address to listen on")
	fset.StringVar(&flagged.Content, "content", flagged.Content, "directory of markdown pages")
	fset.StringVar(&flagged.Static, "static", flagged.Static, "directory of static assets")
	fset.StringVar(&flagged.Extension, "ext", flagged.Extension, "markdown file extension")
	fset.StringVar(&flagged.Template, "template", flagged.Template, "layout template file")
	fset.BoolVar(&flagged.UnsafeHTML, "unsafe-html", flagged.UnsafeHTML, "allow raw HTML in markdown")
	fset.BoolVar(&flagged.Live, "live", flagged.Live, "reload the browser on changes")
	fset.StringVar(&flagged.LogLevel, "log-level", flagged.LogLevel, "log level (debug, info, warn, error)")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if *configPath != "" {
		if err := loadConfigFile(*configPath, config); err != nil {
			return nil, err
		}
	}
	if err := loadConfigEnv(getenv, config); err != nil {
		return nil, err
	}
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			config.Address = flagged.Address
		case "content":
			config.Content = flagged.Content
		case "static":
			config.Static = flagged.Static
		case "ext":
			config.Extension = flagged.Extension
		case "template":
			config.Template = flagged.Template
		case "unsafe-html":
			config.UnsafeHTML = flagged.UnsafeHTML
		case "live":
			config.Live = flagged.Live
		case "log-level":
			config.LogLevel = flagged.LogLevel
		}
	})
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("markserve: unable to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("markserve: unable to parse config %q: %w", path, err)
	}
	return nil
}

func loadConfigEnv(getenv func(string) string, config *Config) error {
	strs := map[string]*string{
		"MARKSERVE_ADDRESS":   &config.Address,
		"MARKSERVE_CONTENT":   &config.Content,
		"MARKSERVE_STATIC":    &config.Static,
		"MARKSERVE_EXTENSION": &config.Extension,
		"MARKSERVE_TEMPLATE":  &config.Template,
		"MARKSERVE_LOG_LEVEL": &config.LogLevel,
	}
	for key, field := range strs {
		if value := getenv(key); value != "" {
			*field = value
		}
	}
	bools := map[string]*bool{
		"MARKSERVE_UNSAFE_HTML": &config.UnsafeHTML,
		"MARKSERVE_LIVE":        &config.Live,
	}
	for key, field := range bools {
		value := getenv(key)
		if value == "" {
			continue
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("markserve: invalid %s %q: %w", key, value, err)
		}
		*field = b
	}
	return nil
}

// Validate the config
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("markserve: address is required")
	}
	if c.Content == "" {
		return errors.New("markserve: content directory is required")
	}
	if c.Static == "" {
		return errors.New("markserve: static directory is required")
	}
	if c.Extension == "" {
		return errors.New("markserve: extension is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("markserve: invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
