package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:            "5000",
		DatabaseURL:     "host=localhost dbname=nsplit",
		RatesFile:       "./rates.yaml",
		AuditBackend:    AuditBackendSQL,
		AuditBufferSize: 100,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "non-numeric port",
			mutate: func(c *Config) { c.Port = "http" },
			want:   "invalid port",
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Port = "70000" },
			want:   "must be between",
		},
		{
			name:   "empty database url",
			mutate: func(c *Config) { c.DatabaseURL = "" },
			want:   "database URL",
		},
		{
			name:   "empty rates file",
			mutate: func(c *Config) { c.RatesFile = "" },
			want:   "rates file",
		},
		{
			name:   "unknown audit backend",
			mutate: func(c *Config) { c.AuditBackend = "kafka" },
			want:   "invalid audit backend",
		},
		{
			name: "amqp backend without url",
			mutate: func(c *Config) {
				c.AuditBackend = AuditBackendAMQP
				c.AMQPURL = ""
			},
			want: "AMQP URL is required",
		},
		{
			name:   "zero audit buffer",
			mutate: func(c *Config) { c.AuditBufferSize = 0 },
			want:   "audit buffer size",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "bad"
	cfg.DatabaseURL = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid port") || !strings.Contains(err.Error(), "database URL") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}
