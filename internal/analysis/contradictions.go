package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"survey-insights/internal/prompt"
)

const (
	minCommonRespondents = 3
	maxQuestionPairs     = 12
)

// Contradictions pairs questions from different groups and asks the
// provider to spot inconsistencies in how the same respondents answered
// both.
type Contradictions struct {
	env Env
}

var _ Engine = (*Contradictions)(nil)

func NewContradictions(env Env) *Contradictions { return &Contradictions{env: env} }

func (c *Contradictions) Type() string { return TypeContradictions }

type contradiction struct {
	Pair        string   `json:"pair"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence,omitempty"`
}

type contradictionsReply struct {
	Contradictions []contradiction `json:"contradictions"`
}

func (r *contradictionsReply) validate() error {
	if r.Contradictions == nil {
		return fmt.Errorf("missing contradictions array")
	}
	for i := range r.Contradictions {
		cd := &r.Contradictions[i]
		cd.Severity = strings.ToLower(strings.TrimSpace(cd.Severity))
		switch cd.Severity {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("contradiction %d: severity %q", i, cd.Severity)
		}
		if strings.TrimSpace(cd.Type) == "" {
			return fmt.Errorf("contradiction %d: empty type", i)
		}
		if strings.TrimSpace(cd.Description) == "" {
			return fmt.Errorf("contradiction %d: empty description", i)
		}
	}
	return nil
}

type contradictionsPayload struct {
	Contradictions       []contradiction `json:"contradictions"`
	SeverityDistribution map[string]int  `json:"severityDistribution"`
	MostCommonType       string          `json:"mostCommonType,omitempty"`
	PairsAnalyzed        int             `json:"pairsAnalyzed"`
}

func (c *Contradictions) Analyze(ctx context.Context, responses []Sanitized) (*Output, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: no responses to analyze", ErrValidation)
	}

	pairs := pairQuestions(responses)
	if len(pairs) == 0 {
		// No question pair shares enough respondents to compare, so
		// there is nothing to send to a provider.
		return c.empty(len(responses))
	}

	in := prompt.Input{Pairs: pairs, Options: c.env.PromptOptions}
	var reply contradictionsReply
	res, err := callParsed(ctx, c.env, TypeContradictions, in, func(text string) error {
		reply = contradictionsReply{}
		if err := json.Unmarshal([]byte(text), &reply); err != nil {
			return err
		}
		return reply.validate()
	})
	if err != nil {
		return nil, err
	}

	payload := aggregateContradictions(reply.Contradictions, len(pairs))
	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}

	structured := len(payload.Contradictions) > 0
	for _, cd := range payload.Contradictions {
		if len(cd.Evidence) == 0 {
			structured = false
			break
		}
	}
	return &Output{
		AnalysisType:    TypeContradictions,
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

func (c *Contradictions) empty(responseCount int) (*Output, error) {
	payload := aggregateContradictions(nil, 0)
	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}
	return &Output{
		AnalysisType:    TypeContradictions,
		Results:         results,
		PromptVersion:   prompt.Version,
		ConfidenceScore: confidence(responseCount, false),
		ResponseCount:   responseCount,
	}, nil
}

func aggregateContradictions(found []contradiction, pairsAnalyzed int) contradictionsPayload {
	severity := map[string]int{"low": 0, "medium": 0, "high": 0}
	typeCounts := make(map[string]int)
	for _, cd := range found {
		severity[cd.Severity]++
		typeCounts[strings.ToLower(strings.TrimSpace(cd.Type))]++
	}
	mostCommon := ""
	best := 0
	types := make([]string, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if typeCounts[t] > best {
			mostCommon = t
			best = typeCounts[t]
		}
	}
	if found == nil {
		found = []contradiction{}
	}
	return contradictionsPayload{
		Contradictions:       found,
		SeverityDistribution: severity,
		MostCommonType:       mostCommon,
		PairsAnalyzed:        pairsAnalyzed,
	}
}

type questionInfo struct {
	id       string
	text     string
	groupID  string
	group    string
	position int
	answers  map[string]string // respondent id -> first answer
	order    []string          // respondent ids in arrival order
}

// pairQuestions builds cross-group question pairs that at least three
// respondents answered on both sides. Pairs are ordered by shared
// respondent count so the cap keeps the best-evidenced ones.
func pairQuestions(responses []Sanitized) []prompt.QuestionPair {
	byQuestion := make(map[string]*questionInfo)
	questionOrder := make([]string, 0)
	for _, r := range responses {
		info, ok := byQuestion[r.QuestionID]
		if !ok {
			info = &questionInfo{
				id:       r.QuestionID,
				text:     r.Question,
				groupID:  r.GroupID,
				group:    r.GroupTitle,
				position: r.GroupPosition,
				answers:  make(map[string]string),
			}
			byQuestion[r.QuestionID] = info
			questionOrder = append(questionOrder, r.QuestionID)
		}
		if _, answered := info.answers[r.RespondentID]; !answered {
			info.answers[r.RespondentID] = r.Text
			info.order = append(info.order, r.RespondentID)
		}
	}

	sort.SliceStable(questionOrder, func(i, j int) bool {
		qi, qj := byQuestion[questionOrder[i]], byQuestion[questionOrder[j]]
		if qi.position != qj.position {
			return qi.position < qj.position
		}
		return qi.id < qj.id
	})

	type candidate struct {
		first, second *questionInfo
		common        []string
	}
	candidates := make([]candidate, 0)
	for i := 0; i < len(questionOrder); i++ {
		for j := i + 1; j < len(questionOrder); j++ {
			first := byQuestion[questionOrder[i]]
			second := byQuestion[questionOrder[j]]
			if first.groupID == second.groupID {
				continue
			}
			common := make([]string, 0)
			for _, respondent := range first.order {
				if _, ok := second.answers[respondent]; ok {
					common = append(common, respondent)
				}
			}
			if len(common) < minCommonRespondents {
				continue
			}
			sort.Strings(common)
			candidates = append(candidates, candidate{first: first, second: second, common: common})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].common) != len(candidates[j].common) {
			return len(candidates[i].common) > len(candidates[j].common)
		}
		if candidates[i].first.id != candidates[j].first.id {
			return candidates[i].first.id < candidates[j].first.id
		}
		return candidates[i].second.id < candidates[j].second.id
	})
	if len(candidates) > maxQuestionPairs {
		candidates = candidates[:maxQuestionPairs]
	}

	pairs := make([]prompt.QuestionPair, 0, len(candidates))
	for _, cand := range candidates {
		answers := make([]prompt.PairedAnswer, 0, len(cand.common))
		for _, respondent := range cand.common {
			answers = append(answers, prompt.PairedAnswer{
				RespondentID: respondent,
				First:        cand.first.answers[respondent],
				Second:       cand.second.answers[respondent],
			})
		}
		pairs = append(pairs, prompt.QuestionPair{
			FirstGroup:     cand.first.group,
			FirstQuestion:  cand.first.text,
			SecondGroup:    cand.second.group,
			SecondQuestion: cand.second.text,
			Answers:        answers,
		})
	}
	return pairs
}
