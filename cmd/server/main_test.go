package main

import (
	"strings"
	"testing"

	"lakumart/backoffice/internal/config"
)

func TestValidateSecurityConfigEmptySecretAllowed(t *testing.T) {
	cfg := config.Config{AuthSecret: ""}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("empty secret should be allowed for development, got %v", err)
	}
}

func TestValidateSecurityConfigShortSecretRejected(t *testing.T) {
	cfg := config.Config{AuthSecret: "too-short"}
	err := validateSecurityConfig(cfg)
	if err == nil {
		t.Fatalf("expected error for short secret")
	}
	if !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected length hint in error, got %v", err)
	}
}

func TestValidateSecurityConfigLongSecretAccepted(t *testing.T) {
	cfg := config.Config{AuthSecret: strings.Repeat("s", 48)}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("long secret should pass, got %v", err)
	}
}
