package fittings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/platform/db"
)

// Store resolves fitting identifiers to records.
type Store interface {
	Lookup(ctx context.Context, id string) (Record, error)
}

// PGRepository implements Store using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectFitting = `
SELECT fitting_id, fitting_type, material, specifications, vendor_name, vendor_code, batch_id,
       manufacture_date, supply_date, warranty_months, status, location
FROM fittings
WHERE fitting_id = $1`

const selectInspections = `
SELECT inspection_date, inspector_name, section, km_location, fault_type, severity, status
FROM inspections
WHERE fitting_id = $1
ORDER BY inspection_date ASC, id ASC`

// Lookup reads the fitting and its inspections from one snapshot.
func (r *PGRepository) Lookup(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrNotFound
	}
	var rec Record
	err := db.WithTx(ctx, r.pool, db.ReadSnapshot, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, selectFitting, id).Scan(
			&rec.FittingID, &rec.FittingType, &rec.Material, &rec.Specifications,
			&rec.VendorName, &rec.VendorCode, &rec.BatchID,
			&rec.ManufactureDate, &rec.SupplyDate, &rec.WarrantyMonths, &rec.Status, &rec.Location,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select fitting: %w", err)
		}
		rows, err := tx.Query(ctx, selectInspections, id)
		if err != nil {
			return fmt.Errorf("select inspections: %w", err)
		}
		defer rows.Close()
		rec.Inspections = make([]Inspection, 0)
		for rows.Next() {
			var in Inspection
			if err := rows.Scan(&in.InspectionDate, &in.InspectorName, &in.Section, &in.KMLocation, &in.FaultType, &in.Severity, &in.Status); err != nil {
				return fmt.Errorf("scan inspection: %w", err)
			}
			rec.Inspections = append(rec.Inspections, in)
		}
		return rows.Err()
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

var _ Store = (*PGRepository)(nil)
