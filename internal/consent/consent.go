// Package consent is the registry the compliance gate consults before any
// provider call. The engine only ever asks one question: does at least one
// granted record of the given type exist for a questionnaire.
package consent

import (
	"context"
	"time"
)

// Type names what the respondent agreed to.
type Type string

const (
	// TypeAnalysis covers automated analysis of a respondent's answers.
	TypeAnalysis Type = "analysis"
	// TypeResearch covers secondary research use.
	TypeResearch Type = "research"
)

// Record is one respondent's consent decision for a questionnaire.
type Record struct {
	ID              string
	QuestionnaireID string
	RespondentID    string
	ConsentType     Type
	Granted         bool
	GrantedAt       *time.Time
}

// Registry exposes the consent checks the engine needs.
type Registry interface {
	// HasGrantedConsent reports whether at least one granted record of the
	// given type exists for the questionnaire.
	HasGrantedConsent(ctx context.Context, questionnaireID string, consentType Type) (bool, error)
}
