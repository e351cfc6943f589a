package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *PostgresStore) InsertSiteVisit(ctx context.Context, visit SiteVisit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_visits (id, requirement_id, architect_id, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5)
	`, visit.ID, visit.RequirementID, visit.ArchitectID, visit.ScheduledFor, visit.Status)
	if err != nil {
		return fmt.Errorf("insert site visit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSiteVisit(ctx context.Context, visitID string) (SiteVisit, error) {
	var visit SiteVisit
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, requirement_id, architect_id, scheduled_for, status, remarks, updated_data, reviewed_by, created_at, updated_at
		FROM site_visits
		WHERE id=$1
	`, visitID).Scan(&visit.ID, &visit.RequirementID, &visit.ArchitectID, &visit.ScheduledFor, &visit.Status, &visit.Remarks, &updated, &visit.ReviewedBy, &visit.CreatedAt, &visit.UpdatedAt)
	if err != nil {
		return SiteVisit{}, err
	}
	visit.UpdatedData = json.RawMessage(updated)
	return visit, nil
}

func (s *PostgresStore) ListVisitsByRequirement(ctx context.Context, requirementID string) ([]SiteVisit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, architect_id, scheduled_for, status, remarks, updated_data, reviewed_by, created_at, updated_at
		FROM site_visits
		WHERE requirement_id=$1
		ORDER BY scheduled_for DESC
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("list site visits: %w", err)
	}
	defer rows.Close()

	items := make([]SiteVisit, 0)
	for rows.Next() {
		var visit SiteVisit
		var updated string
		if err := rows.Scan(&visit.ID, &visit.RequirementID, &visit.ArchitectID, &visit.ScheduledFor, &visit.Status, &visit.Remarks, &updated, &visit.ReviewedBy, &visit.CreatedAt, &visit.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan site visit: %w", err)
		}
		visit.UpdatedData = json.RawMessage(updated)
		items = append(items, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site visits: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSiteVisitData(ctx context.Context, visitID, remarks string, updatedData json.RawMessage, status string) error {
	data := updatedData
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE site_visits
		SET remarks=$2, updated_data=$3, status=$4, updated_at=NOW()
		WHERE id=$1
	`, visitID, remarks, string(data), status)
	if err != nil {
		return fmt.Errorf("update site visit data: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSiteVisitStatus(ctx context.Context, visitID, status, reviewedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE site_visits
		SET status=$2, reviewed_by=$3, updated_at=NOW()
		WHERE id=$1
	`, visitID, status, reviewedBy)
	if err != nil {
		return fmt.Errorf("update site visit status: %w", err)
	}
	return nil
}

// OutdateSiblingVisits marks every non-terminal visit for the requirement,
// except the one just approved, as Outdated. Returns the number of rows
// touched so callers can log the supersede fan-out.
func (s *PostgresStore) OutdateSiblingVisits(ctx context.Context, requirementID, exceptVisitID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE site_visits
		SET status='Outdated', updated_at=NOW()
		WHERE requirement_id=$1 AND id <> $2 AND status IN ('Scheduled', 'InProgress', 'Completed')
	`, requirementID, exceptVisitID)
	if err != nil {
		return 0, fmt.Errorf("outdate sibling visits: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("outdate sibling visits rows: %w", err)
	}
	return int(count), nil
}

func (s *PostgresStore) InsertVisitFile(ctx context.Context, file VisitFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_files (id, visit_id, object_key, file_type)
		VALUES ($1, $2, $3, $4)
	`, file.ID, file.VisitID, file.Key, file.FileType)
	if err != nil {
		return fmt.Errorf("insert visit file: %w", err)
	}
	return nil
}

// UpdateVisitFileKey rewrites a file's object key after relocation.
func (s *PostgresStore) UpdateVisitFileKey(ctx context.Context, fileID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE visit_files SET object_key=$2 WHERE id=$1
	`, fileID, key)
	if err != nil {
		return fmt.Errorf("update visit file key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVisitFiles(ctx context.Context, visitID string) ([]VisitFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, visit_id, object_key, file_type, created_at
		FROM visit_files
		WHERE visit_id=$1
		ORDER BY created_at
	`, visitID)
	if err != nil {
		return nil, fmt.Errorf("list visit files: %w", err)
	}
	defer rows.Close()

	items := make([]VisitFile, 0)
	for rows.Next() {
		var file VisitFile
		if err := rows.Scan(&file.ID, &file.VisitID, &file.Key, &file.FileType, &file.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan visit file: %w", err)
		}
		items = append(items, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visit files: %w", err)
	}
	return items, nil
}
