package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadConfig_KeepsPolicyDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test\nlogger:\n  level: debug\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.App.Name != "test" || cfg.Logger.Level != "debug" {
		t.Errorf("file values not applied: %+v %+v", cfg.App, cfg.Logger)
	}
	if cfg.Assistant.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want 0.6", cfg.Assistant.ConfidenceThreshold)
	}
	if cfg.Assistant.TieBreakConfidence != 0.7 {
		t.Errorf("TieBreakConfidence = %v, want 0.7", cfg.Assistant.TieBreakConfidence)
	}
	if cfg.Assistant.ReplyTruncation != 10 || cfg.Assistant.HistoryCap != 10 {
		t.Errorf("truncation/history = %d/%d, want 10/10", cfg.Assistant.ReplyTruncation, cfg.Assistant.HistoryCap)
	}
	if cfg.Scheduler.DailyTime != "08:00" {
		t.Errorf("DailyTime = %q, want 08:00", cfg.Scheduler.DailyTime)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeConfig(t, "llm:\n  gemini:\n    apiKey: from-file\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LLM.Gemini.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.LLM.Gemini.APIKey)
	}
}

func TestLoadConfig_RejectsBadDailyTime(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  dailyTime: \"8am\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() expected error for malformed dailyTime")
	}
}

func TestLoadConfig_RejectsLongPollInterval(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  pollSeconds: 300\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() expected error for pollSeconds > 60")
	}
}

func TestParseDailyTime(t *testing.T) {
	h, m, err := SchedulerConfig{DailyTime: "08:30"}.ParseDailyTime()
	if err != nil {
		t.Fatalf("ParseDailyTime() error = %v", err)
	}
	if h != 8 || m != 30 {
		t.Errorf("ParseDailyTime() = %d:%d, want 8:30", h, m)
	}
}

func TestLoadConfig_DiscoveryNeedsAddress(t *testing.T) {
	path := writeConfig(t, "discovery:\n  enabled: true\n  endpoints: [\"localhost:2379\"]\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("LoadConfig() error = nil without advertiseAddr")
	}
}

func TestLoadConfig_JWTSecretFromEnv(t *testing.T) {
	t.Setenv("FRIDAY_JWT_SECRET", "s3cret")
	cfg, err := LoadConfig(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.JWTSecret != "s3cret" {
		t.Fatalf("JWTSecret = %q, want s3cret", cfg.Server.JWTSecret)
	}
}

func TestSchedulerClock(t *testing.T) {
	s := SchedulerConfig{Timezone: "Asia/Shanghai"}
	utc := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	now := s.Clock(func() time.Time { return utc })()
	if got := now.Format("2006-01-02 15:04"); got != "2026-10-15 07:30" {
		t.Fatalf("Clock()() = %s, want 2026-10-15 07:30", got)
	}
	if !now.Equal(utc) {
		t.Fatalf("Clock()() = %v, want the same instant as %v", now, utc)
	}
}
