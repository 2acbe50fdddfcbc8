package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"

	"github.com/junevm/flashunlock/internal/ec"
	"github.com/junevm/flashunlock/internal/unlock"
)

// Config holds everything that can change between runs of the unlock tool.
//
// There is deliberately no config file and no environment: every value is a
// built-in default for the Latitude E6400 that a command-line flag may
// override.
//
// The `koanf` struct tags double as the flag names.
type Config struct {
	// RCBA is the physical address of the root complex register block.
	RCBA uint64 `koanf:"rcba"`

	// ECIndex and ECData are the EC index/data I/O ports.
	ECIndex uint16 `koanf:"ec-index"`
	ECData  uint16 `koanf:"ec-data"`

	// Yes skips the confirmation prompt.
	Yes bool `koanf:"yes"`

	// Status only prints the current register state; nothing is written.
	Status bool `koanf:"status"`

	// JSON prints the status as JSON instead of a table.
	JSON bool `koanf:"json"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// Plain disables the interactive terminal UI.
	Plain bool `koanf:"plain"`

	// Version prints the version and exits.
	Version bool `koanf:"version"`
}

// DefaultConfig returns the built-in configuration.
// These values are specific to the Latitude E6400 family (ICH9M with the
// vendor BIOS), which also covers the E6500, E4300 and Precision M2400.
func DefaultConfig() Config {
	return Config{
		RCBA:    unlock.DefaultRCBA,
		ECIndex: ec.DefaultIndexPort,
		ECData:  ec.DefaultDataPort,
	}
}

// Flags returns the command-line flag set. Defaults come from DefaultConfig.
func Flags(name string) *flag.FlagSet {
	def := DefaultConfig()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Uint64("rcba", def.RCBA, "physical address of the root complex register block")
	fs.Uint16("ec-index", def.ECIndex, "EC index I/O port")
	fs.Uint16("ec-data", def.ECData, "EC data I/O port")
	fs.BoolP("yes", "y", false, "do not ask for confirmation")
	fs.BoolP("status", "s", false, "print register status and exit without changing anything")
	fs.Bool("json", false, "print --status output as JSON")
	fs.BoolP("verbose", "V", false, "enable debug logging")
	fs.Bool("plain", false, "never start the interactive terminal UI")
	fs.BoolP("version", "v", false, "display version and exit")
	return fs
}

// Load parses args into fs and returns the merged configuration.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	k := koanf.New(".")

	// 1. Load Defaults
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("error loading default config: %w", err)
	}

	// 2. Load from the command line; only flags that were set override.
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("error loading flags: %w", err)
	}

	// 3. Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.RCBA == 0 || cfg.RCBA&0xfff != 0 {
		return Config{}, fmt.Errorf("invalid --rcba 0x%x: must be a non-zero, page aligned address", cfg.RCBA)
	}
	if cfg.JSON && !cfg.Status {
		return Config{}, fmt.Errorf("--json only applies to --status")
	}
	return cfg, nil
}
