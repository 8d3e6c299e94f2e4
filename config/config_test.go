package config

import "testing"

func TestParseAppliesDefaultsAndEnvDelimiters(t *testing.T) {
	t.Setenv("ALLOWED_HOSTS", "localhost,127.0.0.1")
	cfg, err := Parse([]string{
		"--mempool-max", "777",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %s", err)
	}
	if cfg.MempoolMax != 777 {
		t.Fatalf("expected MempoolMax 777, got %d", cfg.MempoolMax)
	}
	if len(cfg.AllowedHosts) != 2 || cfg.AllowedHosts[0] != "localhost" || cfg.AllowedHosts[1] != "127.0.0.1" {
		t.Fatalf("expected two allowed hosts, got %v", cfg.AllowedHosts)
	}
	if cfg.SnapshotInterval < 10 {
		t.Fatalf("expected default snapshot interval clamped to >= 10, got %d", cfg.SnapshotInterval)
	}
}

func TestParseClampsSmallSnapshotInterval(t *testing.T) {
	cfg, err := Parse([]string{"--snapshot-interval", "3"})
	if err != nil {
		t.Fatalf("Parse returned error: %s", err)
	}
	if cfg.SnapshotInterval != 10 {
		t.Fatalf("expected snapshot interval clamped to 10, got %d", cfg.SnapshotInterval)
	}
}

func TestMempoolConfigFallsBackToSharedMinFee(t *testing.T) {
	cfg := &NodeConfig{MinFeePerByte: 0.5}
	mc := cfg.MempoolConfig([]byte("domain"))
	if mc.MinFeePerByteConsumer != 0.5 || mc.MinFeePerByteIndustrial != 0.5 {
		t.Fatalf("expected both lanes to fall back to shared min fee, got %+v", mc)
	}
}
