package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *PostgresStore) InsertBOM(ctx context.Context, bom BOM) error {
	items := bom.Items
	if len(items) == 0 {
		items = json.RawMessage("[]")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boms (id, requirement_id, title, items, status, remarks, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, bom.ID, bom.RequirementID, bom.Title, []byte(items), bom.Status, bom.Remarks, bom.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert bom: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBOM(ctx context.Context, bomID string) (BOM, error) {
	var bom BOM
	var items []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, requirement_id, title, items, status, remarks, created_by, reviewed_by, created_at, updated_at
		FROM boms
		WHERE id=$1
	`, bomID).Scan(&bom.ID, &bom.RequirementID, &bom.Title, &items, &bom.Status, &bom.Remarks, &bom.CreatedBy, &bom.ReviewedBy, &bom.CreatedAt, &bom.UpdatedAt)
	if err != nil {
		return BOM{}, err
	}
	bom.Items = json.RawMessage(items)
	return bom, nil
}

func (s *PostgresStore) ListBOMsByRequirement(ctx context.Context, requirementID string) ([]BOM, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, title, items, status, remarks, created_by, reviewed_by, created_at, updated_at
		FROM boms
		WHERE requirement_id=$1
		ORDER BY created_at DESC
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("list boms: %w", err)
	}
	defer rows.Close()

	list := make([]BOM, 0)
	for rows.Next() {
		var bom BOM
		var items []byte
		if err := rows.Scan(&bom.ID, &bom.RequirementID, &bom.Title, &items, &bom.Status, &bom.Remarks, &bom.CreatedBy, &bom.ReviewedBy, &bom.CreatedAt, &bom.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bom: %w", err)
		}
		bom.Items = json.RawMessage(items)
		list = append(list, bom)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boms: %w", err)
	}
	return list, nil
}

// UpdateBOMItems replaces the item list. Callers gate this on draft status.
func (s *PostgresStore) UpdateBOMItems(ctx context.Context, bomID string, items json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boms SET items=$2, updated_at=NOW() WHERE id=$1
	`, bomID, []byte(items))
	if err != nil {
		return fmt.Errorf("update bom items: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBOMStatus(ctx context.Context, bomID, status, reviewedBy, remarks string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boms
		SET status=$2, reviewed_by=$3, remarks=CASE WHEN $4 <> '' THEN $4 ELSE remarks END, updated_at=NOW()
		WHERE id=$1
	`, bomID, status, reviewedBy, remarks)
	if err != nil {
		return fmt.Errorf("update bom status: %w", err)
	}
	return nil
}
