package responses

import "time"

// Questionnaire is a survey definition with its ordered question groups.
type Questionnaire struct {
	ID          string
	Title       string
	Description string
	CreatedAt   time.Time
	Groups      []QuestionGroup
}

// QuestionGroup is an ordered section of a questionnaire.
type QuestionGroup struct {
	ID              string
	QuestionnaireID string
	Title           string
	Position        int
	Questions       []Question
}

// Question is a single prompt within a group.
type Question struct {
	ID       string
	GroupID  string
	Prompt   string
	Kind     string
	Position int
}

// Response is one raw respondent answer. Raw answers stay inside the engine;
// only sanitized projections reach providers.
type Response struct {
	ID           string
	QuestionID   string
	RespondentID string
	AnswerText   string
	SubmittedAt  time.Time
}
