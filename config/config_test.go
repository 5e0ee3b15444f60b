package config

import "testing"

func TestDefaultEnableRBF(t *testing.T) {
	cfg := Default()
	if cfg.EnableRBF() {
		t.Fatal("default config should not enable RBF (min_rbf_rate == 0)")
	}
	cfg.MinRBFRate = cfg.MinFeeRate + 1
	if !cfg.EnableRBF() {
		t.Fatal("expected RBF to be enabled once min_rbf_rate exceeds min_fee_rate")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.MaxAncestorsCount != Default().MaxAncestorsCount {
		t.Fatalf("expected defaults to be preserved, got %+v", cfg)
	}
	if cfg.KeepRejectedTxHashesDays < 1 {
		t.Fatalf("expected KeepRejectedTxHashesDays >= 1, got %d", cfg.KeepRejectedTxHashesDays)
	}
}
