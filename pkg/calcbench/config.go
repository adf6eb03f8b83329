package calcbench

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// A ServiceSpec describes one service under test.
type ServiceSpec struct {
	RepositoryURL string // The URL of the git repository of the service
	Name          string // The name of the service, derived from the repository URL
}

var repositoryURLPattern = regexp.MustCompile(`((?:https?|ssh|git|file)://\S+|git@[^\s:]+:\S+)`)

// ParseServices reads a newline-delimited list of repository URLs.
// Blank lines and lines starting with # are ignored.
func ParseServices(r io.Reader) ([]ServiceSpec, error) {
	var specs []ServiceSpec
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		url := repositoryURLPattern.FindString(line)
		if url == "" {
			return nil, fmt.Errorf("line %d: %q does not contain a repository URL", lineNum, line)
		}
		name := serviceNameOf(url)
		if name == "" {
			return nil, fmt.Errorf("line %d: couldn't derive a service name from %s", lineNum, url)
		}

		// Names determine container names, so they have to be unique
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("line %d: service %s was already defined on line %d", lineNum, name, prev)
		}
		seen[key] = lineNum

		specs = append(specs, ServiceSpec{RepositoryURL: url, Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

// serviceNameOf returns the last path segment of a repository URL, without a .git suffix
func serviceNameOf(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(trimmed, ".git")
}

type healthcheckYaml struct {
	Retries int `yaml:"retries" default:"10"`

	Backoff          int `yaml:"backoff" default:"1000"`
	BackoffIncrement int `yaml:"backoffIncrement" default:"0"`
	MaxBackoff       int `yaml:"maxBackoff" default:"1000"`

	Timeout int `yaml:"timeout" default:"1000"`
}

type settingsYaml struct {
	Prefix       string `yaml:"prefix" default:"calcbench"`
	WorkspaceDir string `yaml:"workspaceDir" default:"repos"`
	ServicePort  int    `yaml:"servicePort" default:"8080"`

	RequestTimeout int `yaml:"requestTimeout" default:"5000"`

	MaxConcurrentServices int `yaml:"maxConcurrentServices"`

	Healthcheck healthcheckYaml `yaml:"healthcheck"`
}

// Settings tune how services are built, run and tested.
type Settings struct {
	Prefix       string // Prefix of all image and container names
	WorkspaceDir string // The directory under which every service's repository is cloned
	ServicePort  int    // The port a service listens on if its image doesn't expose one

	RequestTimeout time.Duration // The deadline of a single test request

	MaxConcurrentServices int // The max amount of services tested at once, or 0 if no limit

	Healthcheck HealthcheckConfig
}

// DefaultSettings returns the settings used when no settings file is present
func DefaultSettings() Settings {
	s, err := GetSettingsFromConfig(strings.NewReader(""))
	if err != nil {
		panic(err)
	}
	return s
}

// GetSettingsFromConfig reads settings in yaml format from a reader.
// Durations are given in milliseconds; omitted fields take their defaults.
func GetSettingsFromConfig(r io.Reader) (Settings, error) {
	var config settingsYaml
	if err := defaults.Set(&config); err != nil {
		return Settings{}, err
	}

	if err := yaml.NewDecoder(r).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, err
	}

	settings := Settings{
		Prefix:       config.Prefix,
		WorkspaceDir: config.WorkspaceDir,
		ServicePort:  config.ServicePort,

		RequestTimeout: milliseconds(config.RequestTimeout),

		MaxConcurrentServices: config.MaxConcurrentServices,

		Healthcheck: HealthcheckConfig{
			Retries: config.Healthcheck.Retries,

			Backoff:          milliseconds(config.Healthcheck.Backoff),
			BackoffIncrement: milliseconds(config.Healthcheck.BackoffIncrement),
			MaxBackoff:       milliseconds(config.Healthcheck.MaxBackoff),

			Timeout: milliseconds(config.Healthcheck.Timeout),
		},
	}
	return settings, settings.validate()
}

func milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// LoadSettings reads the settings file at path, falling back to [DefaultSettings] if it doesn't exist
func LoadSettings(path string) (Settings, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	} else if err != nil {
		return Settings{}, err
	}
	defer file.Close()

	settings, err := GetSettingsFromConfig(file)
	if err != nil {
		return Settings{}, errors.Join(fmt.Errorf("invalid settings in %s", path), err)
	}
	return settings, nil
}

func (s Settings) validate() error {
	switch {
	case s.Prefix == "":
		return errors.New("prefix must not be empty")
	case s.WorkspaceDir == "":
		return errors.New("workspaceDir must not be empty")
	case s.ServicePort <= 0 || s.ServicePort > 65535:
		return fmt.Errorf("servicePort %d is not a valid port", s.ServicePort)
	case s.RequestTimeout <= 0:
		return errors.New("requestTimeout must be positive")
	case s.MaxConcurrentServices < 0:
		return errors.New("maxConcurrentServices must not be negative")
	case s.Healthcheck.Retries <= 0:
		return errors.New("healthcheck retries must be positive")
	case s.Healthcheck.Timeout < 0:
		return errors.New("healthcheck timeout must not be negative")
	}
	return nil
}
