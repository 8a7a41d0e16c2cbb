package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pricing is USD per million tokens for one model.
type Pricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// PriceTable maps "provider/model" keys to pricing. Models missing from
// the table price at zero, so estimates understate rather than invent.
type PriceTable struct {
	prices map[string]Pricing
}

// DefaultPriceTable seeds the models the selection policy hands out.
func DefaultPriceTable() *PriceTable {
	return &PriceTable{prices: map[string]Pricing{
		"anthropic/" + anthropicFastModel:    {InputPerMTok: 0.80, OutputPerMTok: 4.00},
		"anthropic/" + anthropicPremiumModel: {InputPerMTok: 3.00, OutputPerMTok: 15.00},
		"openai/" + openAIFastModel:          {InputPerMTok: 0.15, OutputPerMTok: 0.60},
		"openai/" + openAIPremiumModel:       {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	}}
}

// LoadPriceTable reads a YAML pricing file and merges it over the
// defaults, so operators only list the models they override.
func LoadPriceTable(path string) (*PriceTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var loaded map[string]Pricing
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	table := DefaultPriceTable()
	for key, pricing := range loaded {
		table.prices[strings.TrimSpace(key)] = pricing
	}
	return table, nil
}

// Estimate prices one call's token usage in USD.
func (t *PriceTable) Estimate(providerName, model string, usage Usage) float64 {
	if t == nil {
		return 0
	}
	pricing, ok := t.prices[providerName+"/"+model]
	if !ok {
		return 0
	}
	const mtok = 1_000_000
	return float64(usage.InputTokens)*pricing.InputPerMTok/mtok +
		float64(usage.OutputTokens)*pricing.OutputPerMTok/mtok
}
