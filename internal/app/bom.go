package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type CreateBOMInput struct {
	Title string          `json:"title"`
	Items json.RawMessage `json:"items"`
}

func (s *Service) CreateBOM(ctx context.Context, sess Session, requirementID string, in CreateBOMInput) (store.BOM, error) {
	if !s.Can(sess.Role, rbac.ActionProcure) {
		return store.BOM{}, forbidden("You cannot create BOMs")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return store.BOM{}, validation("title is required", nil)
	}
	if _, err := s.store.GetRequirement(ctx, requirementID); err != nil {
		return store.BOM{}, err
	}
	if len(in.Items) == 0 {
		in.Items = json.RawMessage(`[]`)
	}

	bom := store.BOM{
		ID:            util.NewID("bom"),
		RequirementID: requirementID,
		Title:         in.Title,
		Items:         in.Items,
		Status:        workflow.BOMDraft,
		CreatedBy:     sess.UserID,
	}
	if err := s.store.InsertBOM(ctx, bom); err != nil {
		return store.BOM{}, err
	}
	return s.store.GetBOM(ctx, bom.ID)
}

func (s *Service) GetBOM(ctx context.Context, sess Session, bomID string) (store.BOM, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.BOM{}, forbidden("You cannot view BOMs")
	}
	return s.store.GetBOM(ctx, bomID)
}

func (s *Service) ListBOMs(ctx context.Context, sess Session, requirementID string) ([]store.BOM, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view BOMs")
	}
	return s.store.ListBOMsByRequirement(ctx, requirementID)
}

// UpdateBOMItems replaces the line items. Only a draft can be edited;
// submitted and settled BOMs are immutable until a transition returns them to
// draft.
func (s *Service) UpdateBOMItems(ctx context.Context, sess Session, bomID string, items json.RawMessage) (store.BOM, error) {
	if !s.Can(sess.Role, rbac.ActionProcure) {
		return store.BOM{}, forbidden("You cannot edit BOMs")
	}
	bom, err := s.store.GetBOM(ctx, bomID)
	if err != nil {
		return store.BOM{}, err
	}
	if bom.Status != workflow.BOMDraft {
		return store.BOM{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "Only draft BOMs can be edited", map[string]any{"status": bom.Status})
	}
	if len(items) == 0 {
		items = json.RawMessage(`[]`)
	}
	if err := s.store.UpdateBOMItems(ctx, bomID, items); err != nil {
		return store.BOM{}, err
	}
	return s.store.GetBOM(ctx, bomID)
}

type TransitionBOMInput struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

// TransitionBOM drives the review lifecycle: submit, approve, reject, return
// to draft. The transition re-validates inside the transaction so two
// concurrent reviews cannot both land.
func (s *Service) TransitionBOM(ctx context.Context, sess Session, bomID string, in TransitionBOMInput) (store.BOM, error) {
	role := rbac.Normalize(sess.Role)

	bom, err := s.store.GetBOM(ctx, bomID)
	if err != nil {
		return store.BOM{}, err
	}
	if _, err := workflow.BOMMachine.Step(bom.Status, in.Status, role, workflow.Subject{Remarks: in.Remarks}); err != nil {
		return store.BOM{}, err
	}

	err = s.runner.RunAtomic(ctx, func(ctx context.Context, ds dataStore) error {
		b, err := ds.GetBOM(ctx, bomID)
		if err != nil {
			return err
		}
		if _, err := workflow.BOMMachine.Step(b.Status, in.Status, role, workflow.Subject{Remarks: in.Remarks}); err != nil {
			return err
		}
		reviewedBy := ""
		if in.Status == workflow.BOMApproved || in.Status == workflow.BOMRejected {
			reviewedBy = sess.UserID
		}
		return ds.UpdateBOMStatus(ctx, bomID, in.Status, reviewedBy, in.Remarks)
	})
	if err != nil {
		return store.BOM{}, err
	}

	if bom.CreatedBy != sess.UserID {
		s.notifyUser(ctx, bom.CreatedBy, "bom."+in.Status, "BOM "+bom.Title+" is now "+in.Status)
	}
	return s.store.GetBOM(ctx, bomID)
}
