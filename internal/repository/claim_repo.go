package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
)

// SQLiteStore implements port.ClaimStore over SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a SQLite-backed claim store
func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

const claimColumns = `hospital_id, preauth_id, patient_id, claim_type, insurance_provider,
	policy_number, policy_holder_name, policy_holder_rel, treatment_type, diagnosis_code,
	procedure_codes, estimated_cost, requested_amount, approved_amount, current_state,
	priority, is_urgent, urgent_reason, doctor_name, tpa_name, approval_reference,
	rejection_reason, created_at, last_transition_at`

// GetClaim returns the claim in the hospital scope, or claim.ErrNotFound.
func (s *SQLiteStore) GetClaim(ctx context.Context, hospitalID, preauthID string) (*claim.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE hospital_id = ? AND preauth_id = ?`

	row := getExecutor(ctx, s.db).QueryRowContext(ctx, query, hospitalID, preauthID)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, claim.ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get claim",
			zap.String("hospital_id", hospitalID),
			zap.String("preauth_id", preauthID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: get claim: %v", claim.ErrStoreUnavailable, err)
	}
	return c, nil
}

// CreateClaim stores a new claim, mapping the primary key conflict on
// (hospital_id, preauth_id) to claim.ErrDuplicate.
func (s *SQLiteStore) CreateClaim(ctx context.Context, c *claim.Claim) error {
	codes, err := json.Marshal(c.ProcedureCodes)
	if err != nil {
		return fmt.Errorf("failed to encode procedure codes: %w", err)
	}

	query := `INSERT INTO claims (` + claimColumns + `) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = getExecutor(ctx, s.db).ExecContext(ctx, query,
		c.HospitalID, c.PreauthID, c.PatientID, string(c.ClaimType), c.InsuranceProvider,
		c.PolicyNumber, c.PolicyHolderName, c.PolicyHolderRel, c.TreatmentType, c.DiagnosisCode,
		string(codes), c.EstimatedCost.String(), c.RequestedAmount.String(), c.ApprovedAmount.String(),
		c.CurrentState.String(), c.Priority, c.IsUrgent, c.UrgentReason, c.DoctorName, c.TPAName,
		c.ApprovalReference, c.RejectionReason, c.CreatedAt, c.LastTransitionAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return claim.ErrDuplicate
		}
		s.logger.Error("Failed to create claim",
			zap.String("preauth_id", c.PreauthID),
			zap.Error(err))
		return fmt.Errorf("%w: create claim: %v", claim.ErrStoreUnavailable, err)
	}
	return nil
}

// CASUpdateState performs the guarded state write. The WHERE clause carries
// the expected state, so a concurrent transition makes this a no-op and
// surfaces claim.ErrStaleState instead of overwriting it.
func (s *SQLiteStore) CASUpdateState(ctx context.Context, hospitalID, preauthID string, expected, next workflow.State, at time.Time) error {
	query := `UPDATE claims SET current_state = ?, last_transition_at = ?
		WHERE hospital_id = ? AND preauth_id = ? AND current_state = ?`

	res, err := getExecutor(ctx, s.db).ExecContext(ctx, query,
		next.String(), at, hospitalID, preauthID, expected.String())
	if err != nil {
		s.logger.Error("Failed CAS state update",
			zap.String("preauth_id", preauthID),
			zap.Error(err))
		return fmt.Errorf("%w: cas update: %v", claim.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: cas update: %v", claim.ErrStoreUnavailable, err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a lost race from a missing claim.
	var one int
	err = getExecutor(ctx, s.db).QueryRowContext(ctx,
		`SELECT 1 FROM claims WHERE hospital_id = ? AND preauth_id = ?`,
		hospitalID, preauthID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return claim.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: cas update: %v", claim.ErrStoreUnavailable, err)
	}
	return claim.ErrStaleState
}

// UpdateDecisionFields records approval/rejection outcomes on the claim row.
func (s *SQLiteStore) UpdateDecisionFields(ctx context.Context, c *claim.Claim) error {
	query := `UPDATE claims SET approved_amount = ?, approval_reference = ?, rejection_reason = ?
		WHERE hospital_id = ? AND preauth_id = ?`

	_, err := getExecutor(ctx, s.db).ExecContext(ctx, query,
		c.ApprovedAmount.String(), c.ApprovalReference, c.RejectionReason,
		c.HospitalID, c.PreauthID)
	if err != nil {
		s.logger.Error("Failed to update decision fields",
			zap.String("preauth_id", c.PreauthID),
			zap.Error(err))
		return fmt.Errorf("%w: update decision fields: %v", claim.ErrStoreUnavailable, err)
	}
	return nil
}

// ListClaims returns the hospital's claims matching the filter, newest first.
func (s *SQLiteStore) ListClaims(ctx context.Context, hospitalID string, filter port.ClaimFilter) ([]*claim.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE hospital_id = ?`
	args := []interface{}{hospitalID}

	if filter.State != "" {
		query += ` AND current_state = ?`
		args = append(args, filter.State.String())
	}
	if filter.ClaimType != "" {
		query += ` AND claim_type = ?`
		args = append(args, string(filter.ClaimType))
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.To)
	}

	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := getExecutor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list claims", zap.String("hospital_id", hospitalID), zap.Error(err))
		return nil, fmt.Errorf("%w: list claims: %v", claim.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var claims []*claim.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*claim.Claim, error) {
	var (
		c         claim.Claim
		claimType string
		codes     string
		estimated string
		requested string
		approved  string
		state     string
	)
	err := row.Scan(
		&c.HospitalID, &c.PreauthID, &c.PatientID, &claimType, &c.InsuranceProvider,
		&c.PolicyNumber, &c.PolicyHolderName, &c.PolicyHolderRel, &c.TreatmentType, &c.DiagnosisCode,
		&codes, &estimated, &requested, &approved, &state,
		&c.Priority, &c.IsUrgent, &c.UrgentReason, &c.DoctorName, &c.TPAName,
		&c.ApprovalReference, &c.RejectionReason, &c.CreatedAt, &c.LastTransitionAt,
	)
	if err != nil {
		return nil, err
	}

	c.ClaimType = claim.ClaimType(claimType)
	c.CurrentState = workflow.State(state)
	if err := json.Unmarshal([]byte(codes), &c.ProcedureCodes); err != nil {
		return nil, fmt.Errorf("failed to decode procedure codes: %w", err)
	}
	if c.EstimatedCost, err = decimal.NewFromString(estimated); err != nil {
		return nil, fmt.Errorf("failed to decode estimated cost: %w", err)
	}
	if c.RequestedAmount, err = decimal.NewFromString(requested); err != nil {
		return nil, fmt.Errorf("failed to decode requested amount: %w", err)
	}
	if c.ApprovedAmount, err = decimal.NewFromString(approved); err != nil {
		return nil, fmt.Errorf("failed to decode approved amount: %w", err)
	}
	return &c, nil
}

// Verify interface compliance
var _ port.ClaimStore = (*SQLiteStore)(nil)
