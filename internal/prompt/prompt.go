// Package prompt renders the per-analysis-type prompts sent to LLM
// providers. Building is pure: identical input yields identical output,
// so prompts are safe to cache and cheap to test.
package prompt

import (
	"fmt"
	"strings"
)

// Version tags the current prompt wording. Stored with every analysis
// result so output drift across prompt edits stays attributable.
const Version = "v1"

const (
	defaultResponseCap    = 100
	defaultAnswerMaxLen   = 500
	defaultLanguage       = "english"
	defaultMinClusterSize = 3
)

// Response is one sanitized answer shown to the model.
type Response struct {
	ID       string
	Question string
	Text     string
}

// PairedAnswer holds one respondent's answers to both questions of a pair.
type PairedAnswer struct {
	RespondentID string
	First        string
	Second       string
}

// QuestionPair joins two questions from different groups that share
// enough respondents to compare.
type QuestionPair struct {
	FirstGroup     string
	FirstQuestion  string
	SecondGroup    string
	SecondQuestion string
	Answers        []PairedAnswer
}

// Section is a group-ordered slice of responses for the insights prompt.
type Section struct {
	Title     string
	Responses []Response
}

// PriorFinding summarizes an earlier analysis of the same questionnaire,
// fed to the recommendations prompt as context.
type PriorFinding struct {
	AnalysisType string
	Summary      string
}

// Options bound prompt size and steer the output language.
type Options struct {
	Language       string
	ResponseCap    int
	AnswerMaxLen   int
	MinClusterSize int
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Language) == "" {
		o.Language = defaultLanguage
	}
	if o.ResponseCap <= 0 {
		o.ResponseCap = defaultResponseCap
	}
	if o.AnswerMaxLen <= 0 {
		o.AnswerMaxLen = defaultAnswerMaxLen
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = defaultMinClusterSize
	}
	return o
}

// Input carries the per-type material Build renders into a prompt. Only
// the fields the requested analysis type reads need to be set.
type Input struct {
	Responses []Response
	Pairs     []QuestionPair
	Sections  []Section
	Prior     []PriorFinding
	Options   Options
}

// Build returns the system and user prompt for one analysis type.
func Build(analysisType string, in Input) (string, string, error) {
	opts := in.Options.withDefaults()
	switch analysisType {
	case "thematic":
		return thematicSystem(opts), thematicUser(in.Responses, opts), nil
	case "clusters":
		return clustersSystem(opts), clustersUser(in.Responses, opts), nil
	case "contradictions":
		return contradictionsSystem(opts), contradictionsUser(in.Pairs, opts), nil
	case "insights":
		return insightsSystem(opts), insightsUser(in.Sections, opts), nil
	case "recommendations":
		return recommendationsSystem(opts), recommendationsUser(in.Responses, in.Prior, opts), nil
	default:
		return "", "", fmt.Errorf("unknown analysis type %q", analysisType)
	}
}

func thematicSystem(opts Options) string {
	return fmt.Sprintf(`You analyze anonymized questionnaire responses and extract recurring themes.
Rules:
- name each theme concisely and count how many responses support it
- frequency is the number of supporting responses, never negative
- quote at most 3 short examples per theme, verbatim from the responses
- sentiment is one of: positive, neutral, negative, mixed
- write all free-text fields in %s

Respond with JSON only (no markdown):
{"themes": [{"name": "workload pressure", "frequency": 12, "examples": ["..."], "sentiment": "negative", "keywords": ["overtime", "deadlines"]}], "summary": "one paragraph overview"}`, opts.Language)
}

func thematicUser(responses []Response, opts Options) string {
	var b strings.Builder
	b.WriteString("Questionnaire responses:\n")
	b.WriteString(responseLines(responses, opts))
	return b.String()
}

func clustersSystem(opts Options) string {
	return fmt.Sprintf(`You group anonymized questionnaire responses into clusters of similar opinions.
Rules:
- every response number must appear in exactly one cluster
- each cluster needs at least %d members; never propose a smaller one
- members lists the response numbers exactly as shown in the input
- sentiment is one of: positive, neutral, negative, mixed
- write all free-text fields in %s

Respond with JSON only (no markdown):
{"clusters": [{"label": "remote work advocates", "summary": "...", "sentiment": "positive", "characteristics": ["..."], "members": [1, 4, 7]}]}`, opts.MinClusterSize, opts.Language)
}

func clustersUser(responses []Response, opts Options) string {
	var b strings.Builder
	b.WriteString("Responses to cluster:\n")
	b.WriteString(responseLines(responses, opts))
	return b.String()
}

func contradictionsSystem(opts Options) string {
	return fmt.Sprintf(`You look for contradictions in questionnaire answers. Each input pair joins
two questions from different sections answered by the same respondents.
Rules:
- report only genuine inconsistencies between the paired answers
- type is a short category such as "stated-vs-reported" or "expectation-vs-experience"
- severity is one of: low, medium, high
- pair references the pair id shown in the input
- write all free-text fields in %s

Respond with JSON only (no markdown):
{"contradictions": [{"pair": "P1", "type": "stated-vs-reported", "severity": "medium", "description": "...", "evidence": ["..."]}]}`, opts.Language)
}

func contradictionsUser(pairs []QuestionPair, opts Options) string {
	var b strings.Builder
	b.WriteString("Question pairs:\n")
	for i, pair := range pairs {
		b.WriteString(fmt.Sprintf("Pair P%d: [%s] %q vs [%s] %q\n",
			i+1, pair.FirstGroup, strings.TrimSpace(pair.FirstQuestion),
			pair.SecondGroup, strings.TrimSpace(pair.SecondQuestion)))
		for _, ans := range pair.Answers {
			b.WriteString(fmt.Sprintf("- %s: %q | %q\n", ans.RespondentID,
				truncate(ans.First, opts.AnswerMaxLen), truncate(ans.Second, opts.AnswerMaxLen)))
		}
	}
	return b.String()
}

func insightsSystem(opts Options) string {
	return fmt.Sprintf(`You synthesize cross-section insights from a sectioned questionnaire.
Rules:
- connect observations across sections instead of summarizing each one
- significance explains why the finding matters to decision makers
- sections lists the section titles each insight draws on
- write all free-text fields in %s

Respond with JSON only (no markdown):
{"insights": [{"title": "...", "narrative": "...", "sections": ["Work environment"], "significance": "..."}], "keyFindings": ["..."]}`, opts.Language)
}

func insightsUser(sections []Section, opts Options) string {
	var b strings.Builder
	for i, section := range sections {
		b.WriteString(fmt.Sprintf("Section %d: %s\n", i+1, strings.TrimSpace(section.Title)))
		b.WriteString(responseLines(section.Responses, opts))
	}
	return b.String()
}

func recommendationsSystem(opts Options) string {
	return fmt.Sprintf(`You turn questionnaire findings into actionable recommendations.
Rules:
- ground every recommendation in the responses or the prior findings
- priority is one of: low, medium, high, urgent
- impact is a fraction between 0 and 1
- cost is one of: low, medium, high
- list concrete dependencies and required expertise; use an empty array when none
- timeframe is a short phrase such as "2 weeks" or "next quarter"
- write all free-text fields in %s

Respond with JSON only (no markdown):
{"recommendations": [{"title": "...", "description": "...", "priority": "high", "impact": 0.7, "cost": "medium", "dependencies": ["..."], "requiredExpertise": ["..."], "timeframe": "1 month"}]}`, opts.Language)
}

func recommendationsUser(responses []Response, prior []PriorFinding, opts Options) string {
	var b strings.Builder
	b.WriteString("Prior findings:\n")
	if len(prior) == 0 {
		b.WriteString("none\n")
	}
	for _, p := range prior {
		b.WriteString(fmt.Sprintf("- %s: %s\n", p.AnalysisType, truncate(p.Summary, opts.AnswerMaxLen)))
	}
	b.WriteString("\nQuestionnaire responses:\n")
	b.WriteString(responseLines(responses, opts))
	return b.String()
}

// responseLines renders numbered answer lines, capped to keep token cost
// bounded. Cluster membership in provider output refers to these numbers.
func responseLines(responses []Response, opts Options) string {
	var b strings.Builder
	for i, r := range responses {
		if i >= opts.ResponseCap {
			b.WriteString(fmt.Sprintf("(%d more responses omitted)\n", len(responses)-opts.ResponseCap))
			break
		}
		b.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, strings.TrimSpace(r.Question), truncate(r.Text, opts.AnswerMaxLen)))
	}
	return b.String()
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max > 0 && len(text) > max {
		return text[:max] + "..."
	}
	return text
}
