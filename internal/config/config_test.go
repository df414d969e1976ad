package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/cpusim/internal/sim"
	"github.com/me/cpusim/pkg/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultSimConfig(t *testing.T) {
	cfg := DefaultSimConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Policy != model.PolicyNonAggressive {
		t.Errorf("Policy = %q", ec.Policy)
	}
	if ec.Timeslices != sim.DefaultQuanta() {
		t.Errorf("Timeslices = %v", ec.Timeslices)
	}
	if ec.Seed != 1 || ec.IORequestChance != 10 || ec.IOCompletionChance != 4 {
		t.Errorf("unexpected engine config %+v", ec)
	}
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxTicks <= 0 {
		t.Errorf("MaxTicks = %d", cfg.MaxTicks)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := writeFile(t, "sim.yaml", `
policy: sjf
seed: 42
io_request_chance: 5
workload: jobs.txt
`)
	cfg := DefaultSimConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Policy != "sjf" || cfg.Seed != 42 || cfg.IORequestChance != 5 {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	if cfg.IOCompletionChance != 4 {
		t.Errorf("IOCompletionChance = %d, default should survive", cfg.IOCompletionChance)
	}
	if cfg.Workload != "jobs.txt" {
		t.Errorf("Workload = %q", cfg.Workload)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	cfg := DefaultSimConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Seed != 1 {
		t.Errorf("Seed = %d", cfg.Seed)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := DefaultSimConfig()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeFile(t, "bad.yaml", "polcy: sjf\n")
	if err := LoadFile(path, &cfg); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
		field  string
	}{
		{"bad policy", func(c *SimConfig) { c.Policy = "fifo" }, "policy"},
		{"short timeslices", func(c *SimConfig) { c.Timeslices = []int64{1, 2} }, "timeslices"},
		{"zero timeslice", func(c *SimConfig) { c.Timeslices = []int64{1, 2, 0, 8, 16, 32, 64, 128} }, "timeslices"},
		{"bad expr", func(c *SimConfig) { c.TimesliceExpr = "level -" }, "timeslice_expr"},
		{"io request", func(c *SimConfig) { c.IORequestChance = 0 }, "io_request_chance"},
		{"io completion", func(c *SimConfig) { c.IOCompletionChance = -1 }, "io_completion_chance"},
		{"max ticks", func(c *SimConfig) { c.MaxTicks = -5 }, "max_ticks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			found := false
			for _, p := range ve.Problems {
				if p.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no problem reported for %q: %v", tt.field, err)
			}
			if _, err := cfg.Engine(); err == nil {
				t.Error("Engine should refuse an invalid config")
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Policy = ""
	cfg.IORequestChance = 0
	cfg.IOCompletionChance = 0
	var ve *ValidationError
	if !errors.As(cfg.Validate(), &ve) {
		t.Fatal("expected *ValidationError")
	}
	if len(ve.Problems) != 3 {
		t.Errorf("got %d problems, want 3: %v", len(ve.Problems), ve)
	}
	if !strings.HasPrefix(ve.Error(), "invalid configuration: ") {
		t.Errorf("Error() = %q", ve.Error())
	}
}

func TestEngine_ExprOverridesList(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Policy = "a"
	cfg.Timeslices = nil
	cfg.TimesliceExpr = "3"
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Policy != model.PolicyAggressive {
		t.Errorf("Policy = %q", ec.Policy)
	}
	for level, v := range ec.Timeslices {
		if v != 3 {
			t.Errorf("level %d = %d, want 3", level, v)
		}
	}
}

func TestEngine_ResolvesQuantaOnce(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.TimesliceExpr = "(level + 1) * 5"
	want, err := EvalTimesliceExpr(cfg.TimesliceExpr)
	if err != nil {
		t.Fatal(err)
	}
	q, err := cfg.check()
	if err != nil {
		t.Fatal(err)
	}
	if q != want {
		t.Errorf("check quanta = %v, want %v", q, want)
	}
	ec, err := cfg.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if ec.Timeslices != want {
		t.Errorf("Engine quanta = %v, want %v", ec.Timeslices, want)
	}
}

func TestEngine_RejectsBadExpression(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.TimesliceExpr = "level - 1"
	_, err := cfg.Engine()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 1 || verr.Problems[0].Field != "timeslice_expr" {
		t.Errorf("problems = %+v", verr.Problems)
	}
}
