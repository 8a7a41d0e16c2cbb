package responses

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a questionnaire does not exist.
var ErrNotFound = errors.New("questionnaire not found")

// Repo defines read access to questionnaires and their responses.
type Repo interface {
	// GetQuestionnaire returns the questionnaire with groups and questions
	// populated in position order.
	GetQuestionnaire(ctx context.Context, questionnaireID string) (Questionnaire, error)
	// ListResponses returns every response belonging to the questionnaire.
	ListResponses(ctx context.Context, questionnaireID string) ([]Response, error)
}
