package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *PostgresStore) InsertLead(ctx context.Context, lead Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, customer_name, phone, email, city, source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, lead.ID, lead.CustomerName, lead.Phone, lead.Email, lead.City, lead.Source, lead.Status)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	var lead Lead
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, phone, email, city, source, status, assigned_to, created_at, updated_at
		FROM leads
		WHERE id=$1
	`, leadID).Scan(&lead.ID, &lead.CustomerName, &lead.Phone, &lead.Email, &lead.City, &lead.Source, &lead.Status, &lead.AssignedTo, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, status, assignedTo string, limit int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, customer_name, phone, email, city, source, status, assigned_to, created_at, updated_at
		FROM leads
		WHERE 1=1`
	args := []any{}
	argN := 1
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argN)
		args = append(args, status)
		argN++
	}
	if assignedTo != "" {
		query += fmt.Sprintf(" AND assigned_to=$%d", argN)
		args = append(args, assignedTo)
		argN++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(&lead.ID, &lead.CustomerName, &lead.Phone, &lead.Email, &lead.City, &lead.Source, &lead.Status, &lead.AssignedTo, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status=$2, updated_at=NOW() WHERE id=$1
	`, leadID, status)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssignLead(ctx context.Context, leadID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE leads SET assigned_to=$2, status='assigned', updated_at=NOW() WHERE id=$1
	`, leadID, userID)
	if err != nil {
		return fmt.Errorf("assign lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertRequirement(ctx context.Context, req Requirement) error {
	scp := req.SCPData
	if len(scp) == 0 {
		scp = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requirements (id, lead_id, title, scp_data, status)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.LeadID, req.Title, string(scp), req.Status)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRequirement(ctx context.Context, requirementID string) (Requirement, error) {
	var req Requirement
	var scp string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, lead_id, title, scp_data, status, created_at, updated_at
		FROM requirements
		WHERE id=$1
	`, requirementID).Scan(&req.ID, &req.LeadID, &req.Title, &scp, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Requirement{}, err
	}
	req.SCPData = json.RawMessage(scp)
	return req, nil
}

func (s *PostgresStore) ListRequirementsByLead(ctx context.Context, leadID string) ([]Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, title, scp_data, status, created_at, updated_at
		FROM requirements
		WHERE lead_id=$1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	items := make([]Requirement, 0)
	for rows.Next() {
		var req Requirement
		var scp string
		if err := rows.Scan(&req.ID, &req.LeadID, &req.Title, &scp, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		req.SCPData = json.RawMessage(scp)
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateRequirementSCP(ctx context.Context, requirementID string, scpData json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requirements SET scp_data=$2, updated_at=NOW() WHERE id=$1
	`, requirementID, string(scpData))
	if err != nil {
		return fmt.Errorf("update requirement scp: %w", err)
	}
	return nil
}
