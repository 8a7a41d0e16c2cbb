package main

// Render the prompt an analysis type would send, without calling a provider:
//   go run ./cmd/promptpreview -type thematic -in responses.json

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"survey-insights/internal/prompt"
)

type previewInput struct {
	Responses []previewResponse `json:"responses"`
	Pairs     []previewPair     `json:"pairs"`
	Sections  []previewSection  `json:"sections"`
	Prior     []previewFinding  `json:"prior"`
}

type previewResponse struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Text     string `json:"text"`
}

type previewPair struct {
	FirstGroup     string          `json:"firstGroup"`
	FirstQuestion  string          `json:"firstQuestion"`
	SecondGroup    string          `json:"secondGroup"`
	SecondQuestion string          `json:"secondQuestion"`
	Answers        []previewAnswer `json:"answers"`
}

type previewAnswer struct {
	RespondentID string `json:"respondentId"`
	First        string `json:"first"`
	Second       string `json:"second"`
}

type previewSection struct {
	Title     string            `json:"title"`
	Responses []previewResponse `json:"responses"`
}

type previewFinding struct {
	AnalysisType string `json:"analysisType"`
	Summary      string `json:"summary"`
}

func main() {
	analysisType := flag.String("type", "thematic", "Analysis type to render")
	inPath := flag.String("in", "", "Path to JSON input file")
	language := flag.String("language", "", "Output language")
	responseCap := flag.Int("cap", 0, "Response cap")
	minClusterSize := flag.Int("min-cluster", 0, "Minimum cluster size")
	outPath := flag.String("out", "", "Path to write the rendered prompt (optional)")
	flag.Parse()

	if strings.TrimSpace(*inPath) == "" {
		exitErr("input path is required")
	}

	data, err := os.ReadFile(*inPath)
	if err != nil {
		exitErr(fmt.Sprintf("read input: %v", err))
	}

	var in previewInput
	if err := json.Unmarshal(data, &in); err != nil {
		exitErr(fmt.Sprintf("parse input: %v", err))
	}

	system, user, err := prompt.Build(*analysisType, prompt.Input{
		Responses: toResponses(in.Responses),
		Pairs:     toPairs(in.Pairs),
		Sections:  toSections(in.Sections),
		Prior:     toPrior(in.Prior),
		Options: prompt.Options{
			Language:       *language,
			ResponseCap:    *responseCap,
			MinClusterSize: *minClusterSize,
		},
	})
	if err != nil {
		exitErr(err.Error())
	}

	rendered := fmt.Sprintf("--- system (%s, prompt %s) ---\n%s\n\n--- user ---\n%s\n",
		*analysisType, prompt.Version, system, user)

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(rendered), 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.WriteString(rendered); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func toResponses(in []previewResponse) []prompt.Response {
	out := make([]prompt.Response, 0, len(in))
	for _, r := range in {
		out = append(out, prompt.Response{ID: r.ID, Question: r.Question, Text: r.Text})
	}
	return out
}

func toPairs(in []previewPair) []prompt.QuestionPair {
	out := make([]prompt.QuestionPair, 0, len(in))
	for _, p := range in {
		answers := make([]prompt.PairedAnswer, 0, len(p.Answers))
		for _, a := range p.Answers {
			answers = append(answers, prompt.PairedAnswer{
				RespondentID: a.RespondentID,
				First:        a.First,
				Second:       a.Second,
			})
		}
		out = append(out, prompt.QuestionPair{
			FirstGroup:     p.FirstGroup,
			FirstQuestion:  p.FirstQuestion,
			SecondGroup:    p.SecondGroup,
			SecondQuestion: p.SecondQuestion,
			Answers:        answers,
		})
	}
	return out
}

func toSections(in []previewSection) []prompt.Section {
	out := make([]prompt.Section, 0, len(in))
	for _, s := range in {
		out = append(out, prompt.Section{Title: s.Title, Responses: toResponses(s.Responses)})
	}
	return out
}

func toPrior(in []previewFinding) []prompt.PriorFinding {
	out := make([]prompt.PriorFinding, 0, len(in))
	for _, f := range in {
		out = append(out, prompt.PriorFinding{AnalysisType: f.AnalysisType, Summary: f.Summary})
	}
	return out
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
