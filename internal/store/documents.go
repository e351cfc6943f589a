package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertProposalDocument(ctx context.Context, doc ProposalDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposal_documents (id, requirement_id, architect_id, version, status, file_key, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, doc.ID, doc.RequirementID, doc.ArchitectID, doc.Version, doc.Status, doc.FileKey, doc.Remarks)
	if err != nil {
		return fmt.Errorf("insert proposal document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProposalDocument(ctx context.Context, docID string) (ProposalDocument, error) {
	var doc ProposalDocument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, requirement_id, architect_id, version, status, file_key, remarks, reviewed_by, created_at, updated_at
		FROM proposal_documents
		WHERE id=$1
	`, docID).Scan(&doc.ID, &doc.RequirementID, &doc.ArchitectID, &doc.Version, &doc.Status, &doc.FileKey, &doc.Remarks, &doc.ReviewedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return ProposalDocument{}, err
	}
	return doc, nil
}

func (s *PostgresStore) ListProposalsByRequirement(ctx context.Context, requirementID string) ([]ProposalDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, architect_id, version, status, file_key, remarks, reviewed_by, created_at, updated_at
		FROM proposal_documents
		WHERE requirement_id=$1
		ORDER BY version DESC
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("list proposal documents: %w", err)
	}
	defer rows.Close()

	items := make([]ProposalDocument, 0)
	for rows.Next() {
		var doc ProposalDocument
		if err := rows.Scan(&doc.ID, &doc.RequirementID, &doc.ArchitectID, &doc.Version, &doc.Status, &doc.FileKey, &doc.Remarks, &doc.ReviewedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal document: %w", err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) NextProposalVersion(ctx context.Context, requirementID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM proposal_documents WHERE requirement_id=$1
	`, requirementID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("next proposal version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) UpdateProposalDocumentStatus(ctx context.Context, docID, status, reviewedBy, remarks string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE proposal_documents
		SET status=$2, reviewed_by=$3, remarks=CASE WHEN $4 <> '' THEN $4 ELSE remarks END, updated_at=NOW()
		WHERE id=$1
	`, docID, status, reviewedBy, remarks)
	if err != nil {
		return fmt.Errorf("update proposal document status: %w", err)
	}
	return nil
}

// OutdateApprovedProposals supersedes previously approved versions when a new
// one is approved. Approved documents are never deleted.
func (s *PostgresStore) OutdateApprovedProposals(ctx context.Context, requirementID, exceptDocID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE proposal_documents
		SET status='Outdated', updated_at=NOW()
		WHERE requirement_id=$1 AND id <> $2 AND status IN ('Pending', 'Approved')
	`, requirementID, exceptDocID)
	if err != nil {
		return 0, fmt.Errorf("outdate approved proposals: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("outdate approved proposals rows: %w", err)
	}
	return int(count), nil
}
