package config

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	Src      string `default:"src" toml:"src" usage:"Source tree"`
	Dist     string `default:"dist" toml:"dist" usage:"Output tree"`
	Browsers string `default:"chrome58,firefox57,safari11,edge16" toml:"browsers" usage:"Comma separated browser targets for prefixing and transpiling"`
	Log      struct {
		Level string `default:"info" toml:"level"`
		JSON  bool   `default:"false" toml:"json" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
	Server struct {
		Address string `default:"localhost:3000" toml:"address" usage:"Address the development server listens on"`
	} `toml:"server"`
	Sass struct {
		Binary string `default:"sass" toml:"binary" usage:"Dart Sass executable"`
	} `toml:"sass"`
	Images struct {
		JPEGQuality int  `default:"90" toml:"jpeg_quality" usage:"Quality used when re-encoding JPEG images"`
		Progress    bool `default:"false" toml:"progress" usage:"Show a progress bar while optimizing images"`
	} `toml:"images"`
}

// Target is a single browser engine and its minimum version
type Target struct {
	Engine  string
	Version string
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

var knownEngines = map[string]bool{
	"chrome":  true,
	"edge":    true,
	"firefox": true,
	"ie":      true,
	"ios":     true,
	"opera":   true,
	"safari":  true,
}

var targetPattern = regexp.MustCompile(`^([a-z]+)([0-9]+(?:\.[0-9]+)*)$`)

// Loader initializes an empty config object and returns a new Loader for this object
func Loader(files ...string) (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "ASSETS",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the given config files (missing files are skipped) and the environment, then validates the result
func Load(files ...string) (*Config, error) {
	cfg, loader := Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Src == "" || cfg.Dist == "" {
		return eris.New("src and dist must not be empty")
	}

	if filepath.Clean(cfg.Src) == filepath.Clean(cfg.Dist) {
		return eris.Errorf("src and dist both point to %s", cfg.Src)
	}

	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		return eris.Errorf(`Invalid value for images.jpeg_quality: %d (must be between 1 and 100)`, cfg.Images.JPEGQuality)
	}

	if _, err := cfg.Targets(); err != nil {
		return err
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// Targets parses the .Browsers field
func (cfg *Config) Targets() ([]Target, error) {
	result := []Target{}
	for _, item := range strings.Split(cfg.Browsers, ",") {
		item = strings.TrimSpace(strings.ToLower(item))
		if item == "" {
			continue
		}

		match := targetPattern.FindStringSubmatch(item)
		if match == nil || !knownEngines[match[1]] {
			return nil, eris.Errorf(`Invalid browser target %q in browsers`, item)
		}

		result = append(result, Target{Engine: match[1], Version: match[2]})
	}

	return result, nil
}
