package responses

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var _ Repo = (*PGRepo)(nil)

// GetQuestionnaire loads the questionnaire row plus its groups and questions.
func (r *PGRepo) GetQuestionnaire(ctx context.Context, questionnaireID string) (Questionnaire, error) {
	const qQuestionnaire = `
SELECT id, title, description, created_at
FROM questionnaires
WHERE id = $1`

	var q Questionnaire
	var description sql.NullString
	err := r.DB.QueryRowContext(ctx, qQuestionnaire, questionnaireID).Scan(
		&q.ID,
		&q.Title,
		&description,
		&q.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Questionnaire{}, ErrNotFound
		}
		return Questionnaire{}, err
	}
	if description.Valid {
		q.Description = description.String
	}

	groups, err := r.listGroups(ctx, questionnaireID)
	if err != nil {
		return Questionnaire{}, err
	}
	q.Groups = groups
	return q, nil
}

func (r *PGRepo) listGroups(ctx context.Context, questionnaireID string) ([]QuestionGroup, error) {
	const qGroups = `
SELECT id, questionnaire_id, title, position
FROM question_groups
WHERE questionnaire_id = $1
ORDER BY position, id`

	rows, err := r.DB.QueryContext(ctx, qGroups, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []QuestionGroup
	byID := map[string]int{}
	for rows.Next() {
		var g QuestionGroup
		if err := rows.Scan(&g.ID, &g.QuestionnaireID, &g.Title, &g.Position); err != nil {
			return nil, err
		}
		byID[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const qQuestions = `
SELECT q.id, q.group_id, q.prompt, q.kind, q.position
FROM questions q
JOIN question_groups g ON g.id = q.group_id
WHERE g.questionnaire_id = $1
ORDER BY q.position, q.id`

	qrows, err := r.DB.QueryContext(ctx, qQuestions, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()

	for qrows.Next() {
		var question Question
		if err := qrows.Scan(&question.ID, &question.GroupID, &question.Prompt, &question.Kind, &question.Position); err != nil {
			return nil, err
		}
		if idx, ok := byID[question.GroupID]; ok {
			groups[idx].Questions = append(groups[idx].Questions, question)
		}
	}
	return groups, qrows.Err()
}

// ListResponses returns all responses for the questionnaire in submission order.
func (r *PGRepo) ListResponses(ctx context.Context, questionnaireID string) ([]Response, error) {
	const query = `
SELECT r.id, r.question_id, r.respondent_id, r.answer_text, r.submitted_at
FROM responses r
JOIN questions q ON q.id = r.question_id
JOIN question_groups g ON g.id = q.group_id
WHERE g.questionnaire_id = $1
ORDER BY r.submitted_at, r.id`

	rows, err := r.DB.QueryContext(ctx, query, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.QuestionID, &resp.RespondentID, &resp.AnswerText, &resp.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}
