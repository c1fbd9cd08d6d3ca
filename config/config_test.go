package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	for _, n := range []NetworkType{Mainnet, Regtest} {
		if err := Validate(Default(n)); err != nil {
			t.Errorf("default %s config invalid: %v", n, err)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown network", func(c *Config) { c.Network = "testnet" }},
		{"unknown backend", func(c *Config) { c.DB.Backend = "leveldb" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative cache", func(c *Config) { c.DB.CacheBlocks = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("nil config should fail")
	}
}

func TestLoadFile_ParsesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novanet.conf")
	content := `# comment
network = regtest
db.backend = "bolt"
db.cacheblocks = 32
workers = 4
metrics = yes
log.level = debug
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Regtest {
		t.Errorf("network = %s, want regtest", cfg.Network)
	}
	if cfg.DB.Backend != BackendBolt {
		t.Errorf("backend = %s, want bolt", cfg.DB.Backend)
	}
	if cfg.DB.CacheBlocks != 32 {
		t.Errorf("cacheblocks = %d, want 32", cfg.DB.CacheBlocks)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values, got %d", len(values))
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("no equals sign\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig_BadNumber(t *testing.T) {
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{"workers": "many"}); err == nil {
		t.Fatal("expected error for non-numeric workers")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--regtest", "--db=memory", "--workers=0", "--log-json"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	cfg := DefaultMainnet()
	cfg.Workers = 8
	ApplyFlags(cfg, f)

	if cfg.Network != Regtest {
		t.Errorf("network = %s, want regtest", cfg.Network)
	}
	if cfg.DB.Backend != BackendMemory {
		t.Errorf("backend = %s, want memory", cfg.DB.Backend)
	}
	if cfg.Workers != 0 {
		t.Errorf("explicit --workers=0 should override, got %d", cfg.Workers)
	}
	if !cfg.Log.JSON {
		t.Error("log json should be set")
	}
}

func TestParseFlags_PositionalStopsParsing(t *testing.T) {
	if _, err := ParseFlags([]string{"--metrics", "extra", "--regtest"}); err == nil {
		t.Fatal("expected error for unparsed flag after positional argument")
	}
}

func TestLoad_CreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := Load([]string{"--datadir=" + dir, "--regtest", "--db=memory"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network != Regtest {
		t.Errorf("network = %s, want regtest", cfg.Network)
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Errorf("default config file not written: %v", err)
	}
	if _, err := os.Stat(cfg.ChainDataDir()); err != nil {
		t.Errorf("chain data dir not created: %v", err)
	}

	p, err := cfg.LoadParams()
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if p.Name != "regtest" {
		t.Errorf("params = %s, want regtest", p.Name)
	}
}

func TestChainDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/data", Network: Mainnet, DB: DBConfig{Backend: BackendBolt}}
	if got := cfg.ChainDBPath(); got != filepath.Join("/data", "mainnet", "chain.db") {
		t.Errorf("bolt path = %s", got)
	}
	cfg.DB.Backend = BackendBadger
	if got := cfg.ChainDBPath(); got != filepath.Join("/data", "mainnet", "chain") {
		t.Errorf("badger path = %s", got)
	}
}
