package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"survey-insights/internal/prompt"
)

const maxInsightSections = 4

// Insights partitions responses into up to four sections following the
// questionnaire's group ordering and asks the provider for narrative
// findings that cut across them.
type Insights struct {
	env Env
}

var _ Engine = (*Insights)(nil)

func NewInsights(env Env) *Insights { return &Insights{env: env} }

func (i *Insights) Type() string { return TypeInsights }

type insight struct {
	Title        string   `json:"title"`
	Narrative    string   `json:"narrative"`
	Sections     []string `json:"sections,omitempty"`
	Significance string   `json:"significance,omitempty"`
}

type insightsReply struct {
	Insights    []insight `json:"insights"`
	KeyFindings []string  `json:"keyFindings,omitempty"`
}

func (r *insightsReply) validate() error {
	if r.Insights == nil {
		return fmt.Errorf("missing insights array")
	}
	for i, ins := range r.Insights {
		if strings.TrimSpace(ins.Title) == "" {
			return fmt.Errorf("insight %d: empty title", i)
		}
		if strings.TrimSpace(ins.Narrative) == "" {
			return fmt.Errorf("insight %d: empty narrative", i)
		}
	}
	return nil
}

type insightsPayload struct {
	Insights    []insight `json:"insights"`
	KeyFindings []string  `json:"keyFindings"`
	Sections    []string  `json:"sections"`
}

func (i *Insights) Analyze(ctx context.Context, responses []Sanitized) (*Output, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: no responses to analyze", ErrValidation)
	}

	sections := sectionResponses(responses)
	in := prompt.Input{Sections: sections, Options: i.env.PromptOptions}

	var reply insightsReply
	res, err := callParsed(ctx, i.env, TypeInsights, in, func(text string) error {
		reply = insightsReply{}
		if err := json.Unmarshal([]byte(text), &reply); err != nil {
			return err
		}
		return reply.validate()
	})
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(sections))
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	if reply.KeyFindings == nil {
		reply.KeyFindings = []string{}
	}
	payload := insightsPayload{
		Insights:    reply.Insights,
		KeyFindings: reply.KeyFindings,
		Sections:    titles,
	}
	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}
	return &Output{
		AnalysisType:    TypeInsights,
		Results:         results,
		Provider:        res.Provider,
		Model:           res.Model,
		PromptVersion:   prompt.Version,
		TokensUsed:      res.Usage.InputTokens + res.Usage.OutputTokens,
		ProcessingMs:    res.DurationMs,
		ConfidenceScore: confidence(len(responses), len(payload.KeyFindings) > 0),
		ResponseCount:   len(responses),
		CostEstimate:    res.CostEstimate,
	}, nil
}

type groupBucket struct {
	id        string
	title     string
	position  int
	responses []Sanitized
}

// sectionResponses splits responses into at most four sections. Groups
// keep their questionnaire order; when there are more than four, the
// ordered groups are folded into four contiguous sections.
func sectionResponses(responses []Sanitized) []prompt.Section {
	byGroup := make(map[string]*groupBucket)
	order := make([]*groupBucket, 0)
	for _, r := range responses {
		bucket, ok := byGroup[r.GroupID]
		if !ok {
			bucket = &groupBucket{id: r.GroupID, title: r.GroupTitle, position: r.GroupPosition}
			byGroup[r.GroupID] = bucket
			order = append(order, bucket)
		}
		bucket.responses = append(bucket.responses, r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].position != order[j].position {
			return order[i].position < order[j].position
		}
		return order[i].id < order[j].id
	})

	sectionCount := len(order)
	if sectionCount > maxInsightSections {
		sectionCount = maxInsightSections
	}
	if sectionCount == 0 {
		return nil
	}

	sections := make([]prompt.Section, 0, sectionCount)
	base := len(order) / sectionCount
	rem := len(order) % sectionCount
	idx := 0
	for s := 0; s < sectionCount; s++ {
		size := base
		if s < rem {
			size++
		}
		buckets := order[idx : idx+size]
		idx += size
		titles := make([]string, 0, len(buckets))
		merged := make([]prompt.Response, 0)
		for _, bucket := range buckets {
			titles = append(titles, bucket.title)
			merged = append(merged, promptResponses(bucket.responses)...)
		}
		sections = append(sections, prompt.Section{
			Title:     strings.Join(titles, " / "),
			Responses: merged,
		})
	}
	return sections
}
