package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityToken = "token"
	cfg.UserAgent = "test/1.0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults plus required fields to validate, got %v", err)
	}
}

func TestValidateRejectsBadBatteryParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Battery.CapacityKwh = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for negative battery capacity")
	}
}

func TestValidateRejectsBadTickInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a zero tick interval")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
}
