package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertVendor(ctx context.Context, v Vendor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendors (id, name, email, phone, gstin, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.Name, v.Email, v.Phone, v.GSTIN, v.Active)
	if err != nil {
		return fmt.Errorf("insert vendor: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVendor(ctx context.Context, vendorID string) (Vendor, error) {
	var v Vendor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, gstin, active, created_at
		FROM vendors WHERE id=$1
	`, vendorID).Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.GSTIN, &v.Active, &v.CreatedAt)
	if err != nil {
		return Vendor{}, err
	}
	return v, nil
}

func (s *PostgresStore) ListVendors(ctx context.Context, activeOnly bool) ([]Vendor, error) {
	q := `SELECT id, name, email, phone, gstin, active, created_at FROM vendors`
	if activeOnly {
		q += " WHERE active"
	}
	q += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	list := make([]Vendor, 0)
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.GSTIN, &v.Active, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) SetVendorActive(ctx context.Context, vendorID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE vendors SET active=$2 WHERE id=$1`, vendorID, active)
	if err != nil {
		return fmt.Errorf("set vendor active: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, bom_id, vendor_id, status, amount, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, po.ID, po.BOMID, po.VendorID, po.Status, po.Amount, po.Notes, po.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert purchase order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPurchaseOrder(ctx context.Context, poID string) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, bom_id, vendor_id, status, amount, notes, created_by, created_at, updated_at
		FROM purchase_orders WHERE id=$1
	`, poID).Scan(&po.ID, &po.BOMID, &po.VendorID, &po.Status, &po.Amount, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (s *PostgresStore) ListPurchaseOrders(ctx context.Context, bomID, vendorID, status string) ([]PurchaseOrder, error) {
	q := `
		SELECT id, bom_id, vendor_id, status, amount, notes, created_by, created_at, updated_at
		FROM purchase_orders WHERE 1=1`
	args := []any{}
	argN := 1
	if bomID != "" {
		q += fmt.Sprintf(" AND bom_id=$%d", argN)
		args = append(args, bomID)
		argN++
	}
	if vendorID != "" {
		q += fmt.Sprintf(" AND vendor_id=$%d", argN)
		args = append(args, vendorID)
		argN++
	}
	if status != "" {
		q += fmt.Sprintf(" AND status=$%d", argN)
		args = append(args, status)
		argN++
	}
	q += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	list := make([]PurchaseOrder, 0)
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.BOMID, &po.VendorID, &po.Status, &po.Amount, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		list = append(list, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase orders: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) UpdatePurchaseOrderStatus(ctx context.Context, poID, status, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status=$2, notes=CASE WHEN $3 <> '' THEN $3 ELSE notes END, updated_at=NOW()
		WHERE id=$1
	`, poID, status, notes)
	if err != nil {
		return fmt.Errorf("update purchase order status: %w", err)
	}
	return nil
}
