package config

import (
	"strings"
	"testing"
)

func TestValidate_DefaultConfigValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid, got: %v", err)
	}
}

func TestValidate_InvalidStrategy(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Strategy = "threaded"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid strategy, got nil")
	}
}

func TestValidate_PoolRequiresSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Strategy = "pool"
	cfg.Server.PoolSize = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for pool strategy with pool_size 0, got nil")
	}
	if !strings.Contains(err.Error(), "pool_size") {
		t.Errorf("Expected pool_size in error, got: %v", err)
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.RequestLog.Type = "badger"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for badger store without path, got nil")
	}

	cfg.RequestLog.Badger["path"] = "/var/lib/httpserv/log"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config with badger path, got: %v", err)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for out-of-range port, got nil")
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for conflicting metrics port, got nil")
	}
}
