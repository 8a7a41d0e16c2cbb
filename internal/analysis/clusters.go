package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"survey-insights/internal/embedding"
	"survey-insights/internal/prompt"
	"survey-insights/internal/provider"
	"survey-insights/internal/shared/telemetry"
	"survey-insights/internal/vector"
	"survey-insights/internal/vectorstore"
)

const (
	defaultMinClusterSize = 3
	embedConcurrency      = 4
)

// Clusters groups responses by opinion similarity. The provider proposes
// the grouping; cohesion, silhouette, and inter-cluster distance are
// computed locally from response embeddings.
type Clusters struct {
	env Env
}

var _ Engine = (*Clusters)(nil)

func NewClusters(env Env) *Clusters { return &Clusters{env: env} }

func (c *Clusters) Type() string { return TypeClusters }

// clusterProposal is the provider's grouping, with 1-based response
// numbers as rendered in the prompt.
type clusterProposal struct {
	Label           string   `json:"label"`
	Summary         string   `json:"summary"`
	Sentiment       string   `json:"sentiment"`
	Characteristics []string `json:"characteristics"`
	Members         []int    `json:"members"`
}

type clustersReply struct {
	Clusters []clusterProposal `json:"clusters"`
}

func (r *clustersReply) validate(responseCount int) error {
	if r.Clusters == nil {
		return fmt.Errorf("missing clusters array")
	}
	seen := make(map[int]bool)
	for i, cl := range r.Clusters {
		if strings.TrimSpace(cl.Label) == "" {
			return fmt.Errorf("cluster %d: empty label", i)
		}
		if len(cl.Members) == 0 {
			return fmt.Errorf("cluster %d: no members", i)
		}
		for _, m := range cl.Members {
			if m < 1 || m > responseCount {
				return fmt.Errorf("cluster %d: member %d out of range 1..%d", i, m, responseCount)
			}
			if seen[m] {
				return fmt.Errorf("response %d assigned to more than one cluster", m)
			}
			seen[m] = true
		}
	}
	return nil
}

// clusterResult is one stored cluster with its quality metrics.
type clusterResult struct {
	Label           string    `json:"label"`
	Summary         string    `json:"summary,omitempty"`
	Sentiment       string    `json:"sentiment,omitempty"`
	Characteristics []string  `json:"characteristics,omitempty"`
	Members         []string  `json:"members"`
	CohesionScore   float64   `json:"cohesionScore"`
	Centroid        []float64 `json:"centroid,omitempty"`
}

type clustersPayload struct {
	Clusters             []clusterResult `json:"clusters"`
	SilhouetteScore      float64         `json:"silhouetteScore"`
	InterClusterDistance float64         `json:"interClusterDistance"`
	ShortCircuited       bool            `json:"shortCircuited,omitempty"`
}

func (c *Clusters) Analyze(ctx context.Context, responses []Sanitized) (*Output, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: no responses to analyze", ErrValidation)
	}

	minSize := c.env.MinClusterSize
	if minSize <= 0 {
		minSize = defaultMinClusterSize
	}

	// Too few responses to form two distinct clusters. One trivial
	// cluster, no provider call, no embedding cost.
	if len(responses) < 2*minSize {
		return c.trivial(responses)
	}

	texts := make([]string, len(responses))
	for i, r := range responses {
		texts[i] = r.Text
	}
	vectors, err := embedding.EmbedAll(ctx, c.env.Embedder, texts, embedConcurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: embed responses: %v", provider.ErrUnavailable, err)
	}

	opts := c.env.PromptOptions
	opts.MinClusterSize = minSize
	in := prompt.Input{Responses: promptResponses(responses), Options: opts}

	var reply clustersReply
	res, err := callParsed(ctx, c.env, TypeClusters, in, func(text string) error {
		reply = clustersReply{}
		if err := json.Unmarshal([]byte(text), &reply); err != nil {
			return err
		}
		return reply.validate(len(responses))
	})
	if err != nil {
		return nil, err
	}

	payload := c.score(responses, vectors, reply.Clusters)
	c.index(ctx, responses, vectors)

	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}
	structured := true
	for _, cl := range payload.Clusters {
		if len(cl.Characteristics) == 0 || strings.TrimSpace(cl.Sentiment) == "" {
			structured = false
			break
		}
	}
	return &Output{
		AnalysisType:    TypeClusters,
		Results:         results,
		Provider:        res.Provider,
		Model:           res.Model,
		PromptVersion:   prompt.Version,
		TokensUsed:      res.Usage.InputTokens + res.Usage.OutputTokens,
		ProcessingMs:    res.DurationMs,
		ConfidenceScore: confidence(len(responses), structured),
		ResponseCount:   len(responses),
		CostEstimate:    res.CostEstimate,
	}, nil
}

func (c *Clusters) trivial(responses []Sanitized) (*Output, error) {
	members := make([]string, len(responses))
	for i, r := range responses {
		members[i] = r.ID
	}
	payload := clustersPayload{
		Clusters: []clusterResult{{
			Label:         "all responses",
			Summary:       "Too few responses to form distinct clusters.",
			Members:       members,
			CohesionScore: 1.0,
		}},
		ShortCircuited: true,
	}
	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}
	return &Output{
		AnalysisType:    TypeClusters,
		Results:         results,
		PromptVersion:   prompt.Version,
		ConfidenceScore: confidence(len(responses), false),
		ResponseCount:   len(responses),
	}, nil
}

// score maps member numbers back to response ids and computes the
// vector quality metrics for the proposed grouping.
func (c *Clusters) score(responses []Sanitized, vectors [][]float64, proposals []clusterProposal) clustersPayload {
	results := make([]clusterResult, 0, len(proposals))
	grouped := make([][][]float64, 0, len(proposals))
	for _, p := range proposals {
		memberIDs := make([]string, 0, len(p.Members))
		memberVectors := make([][]float64, 0, len(p.Members))
		for _, m := range p.Members {
			memberIDs = append(memberIDs, responses[m-1].ID)
			memberVectors = append(memberVectors, vectors[m-1])
		}
		results = append(results, clusterResult{
			Label:           p.Label,
			Summary:         p.Summary,
			Sentiment:       p.Sentiment,
			Characteristics: p.Characteristics,
			Members:         memberIDs,
			CohesionScore:   vector.Cohesion(memberVectors),
			Centroid:        vector.Centroid(memberVectors),
		})
		grouped = append(grouped, memberVectors)
	}
	return clustersPayload{
		Clusters:             results,
		SilhouetteScore:      vector.Silhouette(grouped),
		InterClusterDistance: vector.InterClusterDistance(grouped),
	}
}

// index upserts the response embeddings so later runs can search by
// similarity. Indexing is auxiliary: failures are logged, not fatal.
func (c *Clusters) index(ctx context.Context, responses []Sanitized, vectors [][]float64) {
	if c.env.Vectors == nil || len(vectors) == 0 {
		return
	}
	if err := c.env.Vectors.Init(ctx, len(vectors[0])); err != nil {
		telemetry.Warn("vector store init failed", map[string]any{"error": err.Error()})
		return
	}
	records := make([]vectorstore.Record, len(responses))
	for i, r := range responses {
		records[i] = vectorstore.Record{ResponseID: r.ID, QuestionID: r.QuestionID, Text: r.Text}
	}
	if err := c.env.Vectors.Upsert(ctx, records, vectors); err != nil {
		telemetry.Warn("vector store upsert failed", map[string]any{"error": err.Error()})
	}
}
