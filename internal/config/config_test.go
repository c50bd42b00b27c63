package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("指定的配置文件不存在应报错")
	}

	// 不指定路径时缺省配置文件可缺失, 全部取默认值。
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("默认配置加载失败: %v", err)
	}

	if cfg.App.Name != "artistwatcher" {
		t.Fatalf("默认应用名不正确: %s", cfg.App.Name)
	}
	if cfg.Scoring.WindowDays != 14 {
		t.Fatalf("默认窗口天数应为 14, 实际 %d", cfg.Scoring.WindowDays)
	}
	if !cfg.Scoring.IncludeSelfInCohort {
		t.Fatal("默认应将自身计入队列分布")
	}
	if cfg.Alerting.ScoreCooldown != 168*time.Hour {
		t.Fatalf("默认阈值冷却期应为 168h, 实际 %v", cfg.Alerting.ScoreCooldown)
	}
	if cfg.Alerting.BatchGuard != 24*time.Hour {
		t.Fatalf("默认批处理防抖应为 24h, 实际 %v", cfg.Alerting.BatchGuard)
	}
	if cfg.Export.MaxDataPoints != 100000 {
		t.Fatalf("默认导出点数上限不正确: %d", cfg.Export.MaxDataPoints)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  name: testwatcher
scoring:
  window_days: 7
  workers: 2
alerting:
  enabled: true
  score_cooldown: 48h
  webhook:
    enabled: true
    url: https://hooks.example.com/momentum
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("配置加载失败: %v", err)
	}
	if cfg.App.Name != "testwatcher" {
		t.Fatalf("应用名未覆盖: %s", cfg.App.Name)
	}
	if cfg.Scoring.WindowDays != 7 || cfg.Scoring.Workers != 2 {
		t.Fatalf("scoring 配置未覆盖: %+v", cfg.Scoring)
	}
	if cfg.Alerting.ScoreCooldown != 48*time.Hour {
		t.Fatalf("冷却期未覆盖: %v", cfg.Alerting.ScoreCooldown)
	}
	// 未覆盖的字段保留默认值。
	if cfg.Scoring.LeaderboardLimit != 50 {
		t.Fatalf("默认排行榜上限丢失: %d", cfg.Scoring.LeaderboardLimit)
	}
	if cfg.Alerting.Webhook.Timeout != 10*time.Second {
		t.Fatalf("默认 webhook 超时丢失: %v", cfg.Alerting.Webhook.Timeout)
	}
}

func TestValidateRejectsIncompleteChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
alerting:
  enabled: true
  telegram:
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("启用 telegram 但缺少 bot_token 应校验失败")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("无覆盖时应取配置值, 实际 %d", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("覆盖值应优先, 实际 %d", got)
	}
}
