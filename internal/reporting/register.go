// Package reporting produces the claim register export hospitals use for
// TPA reconciliation. Thin read-only glue over the claim listing; it
// carries no workflow logic.
package reporting

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
)

// RegisterExporter writes a hospital's claim register as an XLSX workbook
type RegisterExporter struct {
	store  port.ClaimStore
	logger *zap.Logger
}

// NewRegisterExporter creates a claim register exporter
func NewRegisterExporter(store port.ClaimStore, logger *zap.Logger) *RegisterExporter {
	return &RegisterExporter{store: store, logger: logger}
}

var registerHeader = []string{
	"Preauth ID", "Patient ID", "Claim Type", "Insurance Provider", "Policy Number",
	"Treatment Type", "Diagnosis Code", "Estimated Cost", "Requested Amount",
	"Approved Amount", "Current State", "Priority", "Submitted At", "Last Transition At",
}

// Export writes the register for the hospital's claims matching the filter.
func (e *RegisterExporter) Export(ctx context.Context, hospitalID string, filter port.ClaimFilter, w io.Writer) error {
	claims, err := e.store.ListClaims(ctx, hospitalID, filter)
	if err != nil {
		return fmt.Errorf("failed to load claims for register: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Claim Register"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, h := range registerHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, c := range claims {
		if err := e.writeRow(f, sheet, row+2, c); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write register workbook: %w", err)
	}

	e.logger.Info("Claim register exported",
		zap.String("hospital_id", hospitalID),
		zap.Int("claims", len(claims)))
	return nil
}

func (e *RegisterExporter) writeRow(f *excelize.File, sheet string, row int, c *claim.Claim) error {
	values := []interface{}{
		c.PreauthID, c.PatientID, string(c.ClaimType), c.InsuranceProvider, c.PolicyNumber,
		c.TreatmentType, c.DiagnosisCode, c.EstimatedCost.String(), c.RequestedAmount.String(),
		c.ApprovedAmount.String(), c.CurrentState.String(), c.Priority,
		c.CreatedAt.Format("2006-01-02 15:04"), c.LastTransitionAt.Format("2006-01-02 15:04"),
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("failed to build cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to write register row: %w", err)
		}
	}
	return nil
}
