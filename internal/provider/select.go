package provider

import "strings"

// Default models per provider. The fast tier serves types whose prompts
// mostly mechanize the input; the premium tier serves interpretive work.
const (
	anthropicFastModel    = "claude-3-5-haiku-20241022"
	anthropicPremiumModel = "claude-sonnet-4-5-20250929"
	openAIFastModel       = "gpt-4o-mini"
	openAIPremiumModel    = "gpt-4o"
)

// Policy picks a provider and model for an analysis type. Selection is
// deterministic: explicit overrides win, then the type decides the tier.
type Policy struct {
	DefaultProvider string
	FastModel       string
	PremiumModel    string
}

// Overrides carries per-job provider and model requests.
type Overrides struct {
	Provider string
	Model    string
}

// Select resolves the provider name and model for one analysis type.
func (p Policy) Select(analysisType string, o Overrides) (string, string) {
	name := strings.TrimSpace(o.Provider)
	if name == "" {
		name = strings.TrimSpace(p.DefaultProvider)
	}
	if name == "" {
		name = "anthropic"
	}

	if model := strings.TrimSpace(o.Model); model != "" {
		return name, model
	}

	if interpretive(analysisType) {
		if p.PremiumModel != "" {
			return name, p.PremiumModel
		}
		return name, premiumModelFor(name)
	}
	if p.FastModel != "" {
		return name, p.FastModel
	}
	return name, fastModelFor(name)
}

// interpretive types need the model to reason across responses rather
// than tag them, so they run on the premium tier.
func interpretive(analysisType string) bool {
	switch analysisType {
	case "contradictions", "insights", "recommendations":
		return true
	}
	return false
}

func fastModelFor(name string) string {
	if name == "openai" {
		return openAIFastModel
	}
	return anthropicFastModel
}

func premiumModelFor(name string) string {
	if name == "openai" {
		return openAIPremiumModel
	}
	return anthropicPremiumModel
}
