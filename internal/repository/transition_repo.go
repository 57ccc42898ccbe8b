package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

const transitionColumns = `id, preauth_id, hospital_id, state, previous_state, payload_kind,
	payload_data, remarks, changed_by, changed_by_role, changed_at, duration_minutes,
	escalation_level, sla_breach`

// AppendTransition appends one immutable record to the ledger. There is no
// update or delete path for transitions anywhere in this package.
func (s *SQLiteStore) AppendTransition(ctx context.Context, rec *claim.TransitionRecord) error {
	query := `INSERT INTO transitions (` + transitionColumns + `) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := getExecutor(ctx, s.db).ExecContext(ctx, query,
		rec.ID, rec.PreauthID, rec.HospitalID, rec.State.String(), rec.PreviousState.String(),
		string(rec.Payload.Kind), string(rec.Payload.Data), rec.Remarks,
		rec.ChangedBy, rec.ChangedByRole.String(), rec.ChangedAt,
		rec.DurationMinutes, rec.EscalationLevel, rec.SLABreach,
	)
	if err != nil {
		s.logger.Error("Failed to append transition",
			zap.String("preauth_id", rec.PreauthID),
			zap.Error(err))
		return fmt.Errorf("%w: append transition: %v", claim.ErrStoreUnavailable, err)
	}
	return nil
}

// ListTransitions returns the full ledger for the preauth ID, ascending.
func (s *SQLiteStore) ListTransitions(ctx context.Context, hospitalID, preauthID string) ([]*claim.TransitionRecord, error) {
	query := `SELECT ` + transitionColumns + ` FROM transitions
		WHERE hospital_id = ? AND preauth_id = ?
		ORDER BY changed_at ASC`

	rows, err := getExecutor(ctx, s.db).QueryContext(ctx, query, hospitalID, preauthID)
	if err != nil {
		s.logger.Error("Failed to list transitions",
			zap.String("preauth_id", preauthID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: list transitions: %v", claim.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []*claim.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestTransition returns the most recent ledger record.
func (s *SQLiteStore) LatestTransition(ctx context.Context, hospitalID, preauthID string) (*claim.TransitionRecord, error) {
	query := `SELECT ` + transitionColumns + ` FROM transitions
		WHERE hospital_id = ? AND preauth_id = ?
		ORDER BY changed_at DESC LIMIT 1`

	row := getExecutor(ctx, s.db).QueryRowContext(ctx, query, hospitalID, preauthID)
	rec, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get latest transition",
			zap.String("preauth_id", preauthID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: latest transition: %v", claim.ErrStoreUnavailable, err)
	}
	return rec, nil
}

func scanTransition(row rowScanner) (*claim.TransitionRecord, error) {
	var (
		rec         claim.TransitionRecord
		state       string
		prevState   string
		payloadKind string
		payloadData string
		role        string
	)
	err := row.Scan(
		&rec.ID, &rec.PreauthID, &rec.HospitalID, &state, &prevState, &payloadKind,
		&payloadData, &rec.Remarks, &rec.ChangedBy, &role, &rec.ChangedAt,
		&rec.DurationMinutes, &rec.EscalationLevel, &rec.SLABreach,
	)
	if err != nil {
		return nil, err
	}

	rec.State = workflow.State(state)
	rec.PreviousState = workflow.State(prevState)
	rec.ChangedByRole = workflow.Role(role)
	rec.Payload = claim.StatePayload{Kind: claim.PayloadKind(payloadKind)}
	if payloadData != "" {
		rec.Payload.Data = json.RawMessage(payloadData)
	}
	return &rec, nil
}
