package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/config"
	"github.com/me/cpusim/pkg/model"
)

// simFlags binds the simulation parameters shared by run, compare and
// submit. Values only take effect when the flag was set on the command
// line, so a --config file can sit between the defaults and the flags.
type simFlags struct {
	cfg        config.SimConfig
	configPath string

	nonAggressive bool
	aggressive    bool
	sjf           bool
}

func addSimFlags(cmd *cobra.Command, f *simFlags, withPolicy bool) {
	def := config.DefaultSimConfig()
	f.cfg = def
	fl := cmd.Flags()

	fl.StringVar(&f.configPath, "config", "", "YAML file with simulation parameters")
	if withPolicy {
		fl.StringVar(&f.cfg.Policy, "policy", def.Policy, "Scheduling policy (non-aggressive, aggressive, sjf)")
		fl.BoolVarP(&f.nonAggressive, "non-aggressive", "N", false, "Shorthand for --policy non-aggressive")
		fl.BoolVarP(&f.aggressive, "aggressive", "A", false, "Shorthand for --policy aggressive")
		fl.BoolVarP(&f.sjf, "sjf", "S", false, "Shorthand for --policy sjf")
	}
	fl.Int64SliceVar(&f.cfg.Timeslices, "timeslice", def.Timeslices, "Timeslice per priority level, 8 values")
	fl.StringVar(&f.cfg.TimesliceExpr, "timeslice-expr", "", "JavaScript expression over level (0..7) producing the timeslice")
	fl.Int64Var(&f.cfg.Seed, "seed", def.Seed, "Random seed")
	fl.IntVar(&f.cfg.IORequestChance, "io-request-chance", def.IORequestChance, "A running process requests I/O with probability 1/N per tick")
	fl.IntVar(&f.cfg.IOCompletionChance, "io-completion-chance", def.IOCompletionChance, "A blocked process completes I/O with probability 1/N per poll")
	fl.Int64Var(&f.cfg.MaxTicks, "max-ticks", 0, "Abort after this many ticks (0 = no limit)")
}

// resolve layers defaults, the optional config file and the flags that were
// set explicitly.
func (f *simFlags) resolve(cmd *cobra.Command) (config.SimConfig, error) {
	cfg := config.DefaultSimConfig()
	if f.configPath != "" {
		if err := config.LoadFile(f.configPath, &cfg); err != nil {
			return cfg, err
		}
		logger.Debug("loaded config", "path", f.configPath)
	}

	fl := cmd.Flags()
	set := func(name string, apply func()) {
		if fl.Lookup(name) != nil && fl.Changed(name) {
			apply()
		}
	}
	set("policy", func() { cfg.Policy = f.cfg.Policy })
	set("timeslice", func() { cfg.Timeslices = f.cfg.Timeslices; cfg.TimesliceExpr = "" })
	set("timeslice-expr", func() { cfg.TimesliceExpr = f.cfg.TimesliceExpr })
	set("seed", func() { cfg.Seed = f.cfg.Seed })
	set("io-request-chance", func() { cfg.IORequestChance = f.cfg.IORequestChance })
	set("io-completion-chance", func() { cfg.IOCompletionChance = f.cfg.IOCompletionChance })
	set("max-ticks", func() { cfg.MaxTicks = f.cfg.MaxTicks })
	set("verbose", func() { cfg.Verbose = f.cfg.Verbose })
	set("outdir", func() { cfg.OutDir = f.cfg.OutDir })
	set("db", func() { cfg.DBPath = f.cfg.DBPath })

	var shorthands []model.Policy
	if f.nonAggressive {
		shorthands = append(shorthands, model.PolicyNonAggressive)
	}
	if f.aggressive {
		shorthands = append(shorthands, model.PolicyAggressive)
	}
	if f.sjf {
		shorthands = append(shorthands, model.PolicySJF)
	}
	switch len(shorthands) {
	case 0:
	case 1:
		if fl.Changed("policy") {
			if p, err := model.ParsePolicy(cfg.Policy); err == nil && p != shorthands[0] {
				return cfg, fmt.Errorf("--policy %s conflicts with the policy shorthand", cfg.Policy)
			}
		}
		cfg.Policy = string(shorthands[0])
	default:
		return cfg, fmt.Errorf("only one of -N, -A and -S may be given")
	}

	return cfg, nil
}

// workloadPath picks the positional argument over the config file entry.
func workloadPath(cfg *config.SimConfig, args []string) error {
	if len(args) > 0 {
		cfg.Workload = args[0]
	}
	if cfg.Workload == "" {
		return fmt.Errorf("workload path is required (argument or 'workload' in --config)")
	}
	return nil
}
