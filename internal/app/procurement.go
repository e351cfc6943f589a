package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type VendorInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	GSTIN string `json:"gstin"`
}

func (s *Service) CreateVendor(ctx context.Context, sess Session, in VendorInput) (store.Vendor, error) {
	if !s.Can(sess.Role, rbac.ActionProcure) {
		return store.Vendor{}, forbidden("You cannot manage vendors")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return store.Vendor{}, validation("name is required", nil)
	}

	v := store.Vendor{
		ID:     util.NewID("vnd"),
		Name:   in.Name,
		Email:  strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:  strings.TrimSpace(in.Phone),
		GSTIN:  strings.ToUpper(strings.TrimSpace(in.GSTIN)),
		Active: true,
	}
	if err := s.store.InsertVendor(ctx, v); err != nil {
		return store.Vendor{}, err
	}
	return s.store.GetVendor(ctx, v.ID)
}

func (s *Service) GetVendor(ctx context.Context, sess Session, vendorID string) (store.Vendor, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.Vendor{}, forbidden("You cannot view vendors")
	}
	return s.store.GetVendor(ctx, vendorID)
}

func (s *Service) ListVendors(ctx context.Context, sess Session, activeOnly bool) ([]store.Vendor, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view vendors")
	}
	return s.store.ListVendors(ctx, activeOnly)
}

func (s *Service) SetVendorActive(ctx context.Context, sess Session, vendorID string, active bool) (store.Vendor, error) {
	if !s.Can(sess.Role, rbac.ActionProcure) {
		return store.Vendor{}, forbidden("You cannot manage vendors")
	}
	if _, err := s.store.GetVendor(ctx, vendorID); err != nil {
		return store.Vendor{}, err
	}
	if err := s.store.SetVendorActive(ctx, vendorID, active); err != nil {
		return store.Vendor{}, err
	}
	return s.store.GetVendor(ctx, vendorID)
}

type CreatePurchaseOrderInput struct {
	VendorID string `json:"vendorId"`
	Amount   int64  `json:"amount"`
	Notes    string `json:"notes"`
}

// CreatePurchaseOrder raises a PO against an approved BOM. Amounts are minor
// currency units.
func (s *Service) CreatePurchaseOrder(ctx context.Context, sess Session, bomID string, in CreatePurchaseOrderInput) (store.PurchaseOrder, error) {
	if !s.Can(sess.Role, rbac.ActionProcure) {
		return store.PurchaseOrder{}, forbidden("You cannot raise purchase orders")
	}
	if in.Amount <= 0 {
		return store.PurchaseOrder{}, validation("amount must be positive", nil)
	}

	bom, err := s.store.GetBOM(ctx, bomID)
	if err != nil {
		return store.PurchaseOrder{}, err
	}
	if bom.Status != workflow.BOMApproved {
		return store.PurchaseOrder{}, fmt.Errorf("bom %s is %s, purchase orders need an approved bom: %w", bomID, bom.Status, workflow.ErrPreconditionFailed)
	}
	vendor, err := s.store.GetVendor(ctx, in.VendorID)
	if err != nil {
		return store.PurchaseOrder{}, err
	}
	if !vendor.Active {
		return store.PurchaseOrder{}, validation("vendor is inactive", nil)
	}

	po := store.PurchaseOrder{
		ID:        util.NewID("pod"),
		BOMID:     bomID,
		VendorID:  vendor.ID,
		Status:    workflow.POIssued,
		Amount:    in.Amount,
		Notes:     in.Notes,
		CreatedBy: sess.UserID,
	}
	if err := s.store.InsertPurchaseOrder(ctx, po); err != nil {
		return store.PurchaseOrder{}, err
	}
	return s.store.GetPurchaseOrder(ctx, po.ID)
}

func (s *Service) GetPurchaseOrder(ctx context.Context, sess Session, poID string) (store.PurchaseOrder, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.PurchaseOrder{}, forbidden("You cannot view purchase orders")
	}
	return s.store.GetPurchaseOrder(ctx, poID)
}

func (s *Service) ListPurchaseOrders(ctx context.Context, sess Session, bomID, vendorID, status string) ([]store.PurchaseOrder, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view purchase orders")
	}
	return s.store.ListPurchaseOrders(ctx, bomID, vendorID, status)
}

// UpdatePurchaseOrderStatus advances a PO along the PurchaseOrderMachine.
// Vendors may acknowledge and fulfil; cancellation is procurement and admin
// only, all of it encoded in the machine's role gates.
func (s *Service) UpdatePurchaseOrderStatus(ctx context.Context, sess Session, poID, status, notes string) (store.PurchaseOrder, error) {
	po, err := s.store.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return store.PurchaseOrder{}, err
	}
	if _, err := workflow.PurchaseOrderMachine.Step(po.Status, status, rbac.Normalize(sess.Role), workflow.Subject{}); err != nil {
		return store.PurchaseOrder{}, err
	}

	if err := s.store.UpdatePurchaseOrderStatus(ctx, poID, status, notes); err != nil {
		return store.PurchaseOrder{}, err
	}
	if po.CreatedBy != sess.UserID {
		s.notifyUser(ctx, po.CreatedBy, "po."+status, "Purchase order "+po.ID+" is now "+status)
	}
	return s.store.GetPurchaseOrder(ctx, poID)
}
