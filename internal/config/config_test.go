package config

import (
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"TACC_EMIT", "TACC_JOBS", "TACC_TRACE", "TACC_MAX_STEPS"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Emit != EmitAsm || c.Jobs != 1 || c.Trace || c.MaxSteps != Default().MaxSteps {
		t.Errorf("got %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TACC_EMIT", "ir")
	t.Setenv("TACC_JOBS", "4")
	t.Setenv("TACC_TRACE", "1")
	t.Setenv("TACC_MAX_STEPS", "500")
	t.Setenv("TACC_HISTORY", "/tmp/hist")
	c := FromEnv()
	want := Config{Emit: EmitIR, Jobs: 4, Trace: true, MaxSteps: 500, History: "/tmp/hist"}
	if c != want {
		t.Errorf("got %+v, want %+v", c, want)
	}
}

func TestFromEnvRereads(t *testing.T) {
	t.Setenv("TACC_JOBS", "2")
	if c := FromEnv(); c.Jobs != 2 {
		t.Fatalf("jobs: got %d, want 2", c.Jobs)
	}
	t.Setenv("TACC_JOBS", "6")
	if c := FromEnv(); c.Jobs != 6 {
		t.Errorf("changed TACC_JOBS not seen: got %d, want 6", c.Jobs)
	}
}

func TestFromEnvEmptyHistory(t *testing.T) {
	t.Setenv("TACC_HISTORY", "")
	if c := FromEnv(); c.History != "" {
		t.Errorf("empty TACC_HISTORY: got history %q", c.History)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mod  func(*Config)
		want string
	}{
		{func(c *Config) { c.Emit = "obj" }, `unknown emit form "obj"`},
		{func(c *Config) { c.Jobs = 0 }, "jobs must be at least 1"},
		{func(c *Config) { c.MaxSteps = -1 }, "max steps must be positive"},
	}
	for _, tt := range tests {
		c := Default()
		tt.mod(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("got %v, want error containing %q", err, tt.want)
		}
	}
}
