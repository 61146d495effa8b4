package infra

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestPoolConfig(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://user:pw@localhost:5432/donations?sslmode=disable", DBMaxConns: 4}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig() error: %v", err)
	}
	if poolCfg.MaxConns != 4 || poolCfg.MinConns != 1 {
		t.Fatalf("pool sizes = %d/%d, want 4/1", poolCfg.MaxConns, poolCfg.MinConns)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "donationhub" {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigKeepsExplicitApplicationName(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/db?application_name=ops", DBMaxConns: 10}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig() error: %v", err)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Fatalf("application_name = %q, want ops", got)
	}
}

func TestPoolConfigRejectsBadInput(t *testing.T) {
	if _, err := poolConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := poolConfig(&Config{DatabaseURL: "postgres://%zz"}); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("lookup: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows not detected")
	}
	if IsNoRows(fmt.Errorf("boom")) {
		t.Fatal("unrelated error reported as no rows")
	}
}
