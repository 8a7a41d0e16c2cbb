package provider

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEstimateDefaultPricing(t *testing.T) {
	table := DefaultPriceTable()
	cost := table.Estimate("anthropic", anthropicPremiumModel, Usage{InputTokens: 1_000_000, OutputTokens: 2_000_000})
	if math.Abs(cost-33.0) > 1e-9 {
		t.Fatalf("expected 3.00 + 2*15.00 = 33.00, got %v", cost)
	}
}

func TestEstimateUnknownModelIsZero(t *testing.T) {
	table := DefaultPriceTable()
	if cost := table.Estimate("anthropic", "claude-unknown", Usage{InputTokens: 1000}); cost != 0 {
		t.Fatalf("expected 0 for unknown model, got %v", cost)
	}
}

func TestLoadPriceTableMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `
openai/gpt-4o:
  input_per_mtok: 5.0
  output_per_mtok: 20.0
local/llama3:
  input_per_mtok: 0.0
  output_per_mtok: 0.0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write pricing file: %v", err)
	}

	table, err := LoadPriceTable(path)
	if err != nil {
		t.Fatalf("LoadPriceTable: %v", err)
	}
	cost := table.Estimate("openai", "gpt-4o", Usage{InputTokens: 1_000_000})
	if math.Abs(cost-5.0) > 1e-9 {
		t.Fatalf("expected overridden input price, got %v", cost)
	}
	// Defaults not named in the file survive the merge.
	if cost := table.Estimate("openai", openAIFastModel, Usage{OutputTokens: 1_000_000}); math.Abs(cost-0.60) > 1e-9 {
		t.Fatalf("expected default fast pricing, got %v", cost)
	}
}

func TestLoadPriceTableRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o600); err != nil {
		t.Fatalf("write pricing file: %v", err)
	}
	if _, err := LoadPriceTable(path); err == nil {
		t.Fatal("expected parse error")
	}
}
