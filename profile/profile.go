// Package profile loads transcoding profiles and turns them into chains
// of transcode.Streams.
//
// A profile lists one or more command steps. Each step becomes a
// transcoder process whose input is the output of the previous step:
//
//	profiles:
//	  - name: flac-to-mp3
//	    source: [flac]
//	    target: mp3
//	    steps:
//	      - ffmpeg -i - -f wav -
//	      - command: lame -b %b --tt "%t" - -
//	        env:
//	          LAME_NICE: "1"
//
// Commands are split into arguments before variables are substituted,
// so a value containing spaces stays a single argument.
//
// The config file is given explicitly or through TRANSCODE_CONFIG.
// There is no automatic discovery.
package profile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config file path
const ConfigEnv = "TRANSCODE_CONFIG"

var (
	// ErrNotFound is returned when no profile has the requested name
	ErrNotFound = errors.New("profile not found")

	// ErrNoConfig is returned by LoadFromEnv when TRANSCODE_CONFIG is unset
	ErrNoConfig = errors.New(ConfigEnv + " is not set")
)

// Config is a set of transcoding profiles
type Config struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profile describes how to convert one family of formats into another
type Profile struct {
	// Name identifies the profile (e.g. "flac-to-mp3")
	Name string `yaml:"name"`

	// Source lists the input formats the profile accepts
	Source []string `yaml:"source,omitempty"`

	// Target is the format the last step produces
	Target string `yaml:"target,omitempty"`

	// Steps run in order, each fed by the previous one
	Steps []Step `yaml:"steps"`
}

// Step is a single transcoder command. In YAML it is either a plain
// command string or a mapping with command and env.
type Step struct {
	Command string            `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand for a step
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Step{Command: value.Value}
		return nil
	}

	type rawStep Step
	var raw rawStep
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = Step(raw)
	return nil
}

// environ returns the process environment for the step, or nil to
// inherit the current one unchanged
func (s *Step) environ() []string {
	if len(s.Env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by TRANSCODE_CONFIG
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		return nil, ErrNoConfig
	}
	return Load(path)
}

// Parse decodes and validates a YAML config
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid profile config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that profile names are present and unique and that
// every profile has at least one non-empty step
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d: name is required", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("profile %s: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if len(p.Steps) == 0 {
			return fmt.Errorf("profile %s: at least one step is required", p.Name)
		}
		for j, step := range p.Steps {
			if strings.TrimSpace(step.Command) == "" {
				return fmt.Errorf("profile %s step %d: command is required", p.Name, j+1)
			}
		}
	}
	return nil
}

// Lookup returns the profile with the given name
func (c *Config) Lookup(name string) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ForSource returns the profiles accepting the given input format
func (c *Config) ForSource(format string) []*Profile {
	var matches []*Profile
	for i := range c.Profiles {
		for _, src := range c.Profiles[i].Source {
			if strings.EqualFold(src, format) {
				matches = append(matches, &c.Profiles[i])
				break
			}
		}
	}
	return matches
}
