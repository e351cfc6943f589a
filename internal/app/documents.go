package app

import (
	"context"
	"fmt"
	"path"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type SubmitProposalInput struct {
	FileKey string `json:"fileKey"`
	Remarks string `json:"remarks"`
}

// SubmitProposal files a new proposal version against a requirement. The
// staged upload moves to its permanent key in the same transaction that
// creates the version row, so a failed insert never leaves a claimed blob.
func (s *Service) SubmitProposal(ctx context.Context, sess Session, requirementID string, in SubmitProposalInput) (store.ProposalDocument, error) {
	role := rbac.Normalize(sess.Role)
	if role != rbac.RoleArchitect && role != rbac.RoleAdmin {
		return store.ProposalDocument{}, forbidden("Only architects submit proposals")
	}
	if !storage.IsStaged(in.FileKey) {
		return store.ProposalDocument{}, validation("fileKey must be a staged upload", nil)
	}
	if _, err := s.store.GetRequirement(ctx, requirementID); err != nil {
		return store.ProposalDocument{}, err
	}

	docID := util.NewID("doc")
	reloc := workflow.NewRelocator(s.blobs)
	err := s.runner.RunAtomic(ctx, func(ctx context.Context, ds dataStore) error {
		version, err := ds.NextProposalVersion(ctx, requirementID)
		if err != nil {
			return err
		}
		newKey := storage.PermanentKey(requirementID, docID, fmt.Sprintf("v%d", version), path.Ext(in.FileKey))
		if err := reloc.Relocate(ctx, in.FileKey, newKey); err != nil {
			return err
		}
		return ds.InsertProposalDocument(ctx, store.ProposalDocument{
			ID:            docID,
			RequirementID: requirementID,
			ArchitectID:   sess.UserID,
			Version:       version,
			Status:        workflow.DocPending,
			FileKey:       newKey,
			Remarks:       in.Remarks,
		})
	})
	if err != nil {
		reloc.Compensate(ctx)
		return store.ProposalDocument{}, err
	}
	reloc.Finalize(ctx)

	return s.store.GetProposalDocument(ctx, docID)
}

type ReviewProposalInput struct {
	Decision string `json:"decision"` // "approve" or "reject"
	Remarks  string `json:"remarks"`
}

// ReviewProposal settles a pending version. Approving it outdates every other
// pending or approved version of the same requirement, so at most one version
// is ever Approved.
func (s *Service) ReviewProposal(ctx context.Context, sess Session, docID string, in ReviewProposalInput) (store.ProposalDocument, error) {
	role := rbac.Normalize(sess.Role)

	var to string
	switch in.Decision {
	case "approve":
		to = workflow.DocApproved
	case "reject":
		to = workflow.DocRejected
	default:
		return store.ProposalDocument{}, validation("decision must be approve or reject", nil)
	}

	doc, err := s.store.GetProposalDocument(ctx, docID)
	if err != nil {
		return store.ProposalDocument{}, err
	}
	if _, err := workflow.DocumentMachine.Step(doc.Status, to, role, workflow.Subject{Remarks: in.Remarks}); err != nil {
		return store.ProposalDocument{}, err
	}

	err = s.runner.RunAtomic(ctx, func(ctx context.Context, ds dataStore) error {
		d, err := ds.GetProposalDocument(ctx, docID)
		if err != nil {
			return err
		}
		rule, err := workflow.DocumentMachine.Step(d.Status, to, role, workflow.Subject{Remarks: in.Remarks})
		if err != nil {
			return err
		}
		if err := ds.UpdateProposalDocumentStatus(ctx, docID, to, sess.UserID, in.Remarks); err != nil {
			return err
		}
		if rule.Merge {
			if _, err := ds.OutdateApprovedProposals(ctx, d.RequirementID, docID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.ProposalDocument{}, err
	}

	s.notifyUser(ctx, doc.ArchitectID, "proposal."+in.Decision+"d",
		fmt.Sprintf("Proposal %s v%d was %sd", doc.ID, doc.Version, in.Decision))
	return s.store.GetProposalDocument(ctx, docID)
}

func (s *Service) GetProposal(ctx context.Context, sess Session, docID string) (store.ProposalDocument, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.ProposalDocument{}, forbidden("You cannot view proposals")
	}
	return s.store.GetProposalDocument(ctx, docID)
}

func (s *Service) ListProposals(ctx context.Context, sess Session, requirementID string) ([]store.ProposalDocument, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view proposals")
	}
	return s.store.ListProposalsByRequirement(ctx, requirementID)
}
