package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Engagement.CompletionWindowDays != 30 {
		t.Errorf("CompletionWindowDays = %d, want 30", cfg.Engagement.CompletionWindowDays)
	}
	if len(cfg.Engagement.StreakMilestones) != 7 {
		t.Errorf("StreakMilestones = %v, want 7 entries", cfg.Engagement.StreakMilestones)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPulseHome_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PULSE_HOME", dir)
	if PulseHome() != dir {
		t.Errorf("PulseHome() = %q, want %q", PulseHome(), dir)
	}
	if ConfigPath() != filepath.Join(dir, "config.toml") {
		t.Errorf("ConfigPath() = %q", ConfigPath())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 7777 {
		t.Errorf("API.Port = %d, want 7777", cfg.API.Port)
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.User.Key = "alex"
	cfg.Store.Backend = BackendRedis
	cfg.Store.RedisDB = 3
	cfg.Engagement.RandomSeed = 42
	cfg.Engagement.StreakMilestones = []int{5, 10}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.User.Key != "alex" || got.Store.Backend != BackendRedis || got.Store.RedisDB != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Engagement.RandomSeed != 42 || len(got.Engagement.StreakMilestones) != 2 {
		t.Errorf("engagement mismatch: %+v", got.Engagement)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad toml":      "[store\nbackend=",
		"bad backend":   "[store]\nbackend = \"postgres\"\n",
		"empty user":    "[user]\nkey = \"\"\n",
		"bad milestone": "[engagement]\nstreak_milestones = [3, 0]\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("PULSE_HOME", home)
			if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig() = nil error, want failure")
			}
		})
	}
}
