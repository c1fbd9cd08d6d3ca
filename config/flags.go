package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network    string
	DataDir    string
	Config     string
	ParamsFile string
	Workers    int

	// One-shot inputs
	ImportFile     string
	CheckpointFile string

	// Storage
	DBBackend   string
	CacheBlocks int

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags.
	SetWorkers     bool
	SetCacheBlocks bool
	SetMetrics     bool
	SetLogJSON     bool
}

// ParseFlags parses command-line flags from args (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("novad", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or regtest)")
	regtest := fs.Bool("regtest", false, "Use regtest (shorthand for --network=regtest)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.ParamsFile, "params", "", "Consensus parameter file (JSON or YAML)")
	fs.IntVar(&f.Workers, "workers", 0, "Block validation workers (0 = one per CPU)")

	fs.StringVar(&f.ImportFile, "import", "", "Import blocks from file at startup")
	fs.StringVar(&f.CheckpointFile, "checkpoint", "", "Apply a signed checkpoint file at startup")

	fs.StringVar(&f.DBBackend, "db", "", "Database backend (badger, bolt, memory)")
	fs.IntVar(&f.CacheBlocks, "cache-blocks", 0, "Decoded blocks kept in memory")

	fs.BoolVar(&f.Metrics, "metrics", false, "Serve Prometheus metrics")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Metrics listen address")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *regtest {
		f.Network = string(Regtest)
	}
	f.SetWorkers = isFlagSet(fs, "workers")
	f.SetCacheBlocks = isFlagSet(fs, "cache-blocks")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.ParamsFile != "" {
		cfg.ParamsFile = f.ParamsFile
	}
	if f.SetWorkers {
		cfg.Workers = f.Workers
	}
	if f.ImportFile != "" {
		cfg.ImportFile = f.ImportFile
	}
	if f.CheckpointFile != "" {
		cfg.CheckpointFile = f.CheckpointFile
	}

	if f.DBBackend != "" {
		cfg.DB.Backend = strings.ToLower(f.DBBackend)
	}
	if f.SetCacheBlocks {
		cfg.DB.CacheBlocks = f.CacheBlocks
	}

	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the novad help text.
func PrintUsage(w io.Writer) {
	usage := `Novanet - hybrid proof-of-work / proof-of-stake validation node

Usage:
  novad [options]
  novad --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or regtest
  --regtest       Shorthand for --network=regtest
  --datadir       Data directory (default: ~/.novanet)
  --config, -c    Config file path (default: <datadir>/novanet.conf)
  --params        Consensus parameter file (JSON or YAML)
  --workers       Block validation workers (default: one per CPU)

Input Options:
  --import        Import serialized blocks from file at startup
  --checkpoint    Apply a signed checkpoint file at startup

Storage Options:
  --db            Database backend: badger (default), bolt or memory
  --cache-blocks  Decoded blocks kept in memory (default: 256)

Metrics Options:
  --metrics       Serve Prometheus metrics
  --metrics-addr  Metrics listen address (default: 127.0.0.1:9742)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/novad.log)
  --log-json      Output logs as JSON

Examples:
  # Validate a block file against regtest rules
  novad --regtest --db=memory --import=blocks.dat

  # Start a mainnet node with metrics
  novad --metrics
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	network := Mainnet
	if strings.ToLower(flags.Network) == string(Regtest) {
		network = Regtest
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// LoadParams returns the consensus parameters the node should run with:
// the file named by cfg.ParamsFile if set, otherwise the built-in set for
// cfg.Network.
func (c *Config) LoadParams() (*Params, error) {
	if c.ParamsFile != "" {
		return LoadParams(c.ParamsFile)
	}
	p := ParamsFor(c.Network)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
