package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/me/cpusim/internal/sim"
	"github.com/me/cpusim/pkg/model"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the simulation server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.cpusim/runs.db, ":memory:" for testing)
	MaxTicks  int64  // Upper bound on the length of a single simulation
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		MaxTicks:  1_000_000,
	}
}

// SimConfig holds everything needed to run one simulation from the command
// line. Zero-valued YAML fields leave the defaults in place.
type SimConfig struct {
	Policy             string  `yaml:"policy"`
	Timeslices         []int64 `yaml:"timeslices"`
	TimesliceExpr      string  `yaml:"timeslice_expr"`
	Seed               int64   `yaml:"seed"`
	IORequestChance    int     `yaml:"io_request_chance"`
	IOCompletionChance int     `yaml:"io_completion_chance"`
	Verbose            bool    `yaml:"verbose"`
	Workload           string  `yaml:"workload"`
	OutDir             string  `yaml:"outdir"`
	DBPath             string  `yaml:"db"`
	MaxTicks           int64   `yaml:"max_ticks"`
}

// DefaultSimConfig returns the stock simulation settings: timeslices
// 1, 2, 4 ... 128, seed 1, I/O request chance 1 in 10, I/O completion
// chance 1 in 4, non-aggressive policy.
func DefaultSimConfig() SimConfig {
	q := sim.DefaultQuanta()
	return SimConfig{
		Policy:             string(model.PolicyNonAggressive),
		Timeslices:         q[:],
		Seed:               1,
		IORequestChance:    10,
		IOCompletionChance: 4,
		OutDir:             ".",
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *SimConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ValidationError lists every invalid field of a configuration.
type ValidationError struct {
	Problems []model.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Field+": "+p.Message)
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Quanta resolves the per-level timeslices. A timeslice expression takes
// precedence over the explicit list.
func (c SimConfig) Quanta() (sim.Quanta, error) {
	if strings.TrimSpace(c.TimesliceExpr) != "" {
		return EvalTimesliceExpr(c.TimesliceExpr)
	}
	var q sim.Quanta
	if len(c.Timeslices) != sim.NumLevels {
		return q, fmt.Errorf("need %d timeslices, got %d", sim.NumLevels, len(c.Timeslices))
	}
	copy(q[:], c.Timeslices)
	return q, nil
}

// Validate reports every problem with c at once.
func (c SimConfig) Validate() error {
	_, err := c.check()
	return err
}

// check validates c and returns the quanta it resolves to, evaluating any
// timeslice expression once.
func (c SimConfig) check() (sim.Quanta, error) {
	var problems []model.FieldError
	add := func(field, format string, args ...any) {
		problems = append(problems, model.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := model.ParsePolicy(c.Policy); err != nil {
		add("policy", "%v", err)
	}
	q, err := c.Quanta()
	if err != nil {
		field := "timeslices"
		if c.TimesliceExpr != "" {
			field = "timeslice_expr"
		}
		add(field, "%v", err)
	} else {
		for level, v := range q {
			if v < 1 {
				add("timeslices", "level %d: must be at least 1, got %d", level, v)
			}
		}
	}
	if c.IORequestChance < 1 {
		add("io_request_chance", "must be at least 1, got %d", c.IORequestChance)
	}
	if c.IOCompletionChance < 1 {
		add("io_completion_chance", "must be at least 1, got %d", c.IOCompletionChance)
	}
	if c.MaxTicks < 0 {
		add("max_ticks", "must not be negative, got %d", c.MaxTicks)
	}

	if len(problems) > 0 {
		return q, &ValidationError{Problems: problems}
	}
	return q, nil
}

// Engine converts c into the engine parameters.
func (c SimConfig) Engine() (sim.Config, error) {
	quanta, err := c.check()
	if err != nil {
		return sim.Config{}, err
	}
	policy, _ := model.ParsePolicy(c.Policy)
	return sim.Config{
		Policy:             policy,
		Timeslices:         quanta,
		Seed:               c.Seed,
		IORequestChance:    c.IORequestChance,
		IOCompletionChance: c.IOCompletionChance,
		MaxTicks:           c.MaxTicks,
	}, nil
}
