package consent

import (
	"context"
	"database/sql"
)

type pgRegistry struct {
	DB *sql.DB
}

var _ Registry = (*pgRegistry)(nil)

// NewPGRegistry constructs a Postgres-backed consent registry.
func NewPGRegistry(db *sql.DB) *pgRegistry {
	return &pgRegistry{DB: db}
}

func (s *pgRegistry) HasGrantedConsent(ctx context.Context, questionnaireID string, consentType Type) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM consents
    WHERE questionnaire_id = $1 AND consent_type = $2 AND granted = TRUE
)`
	var granted bool
	if err := s.DB.QueryRowContext(ctx, query, questionnaireID, consentType).Scan(&granted); err != nil {
		return false, err
	}
	return granted, nil
}
