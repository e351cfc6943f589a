package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

func submitProposal(t *testing.T, e *testEnv, arch Session) string {
	t.Helper()
	stagedKey := storage.StagedKey(".pdf")
	e.blobs.Put(stagedKey, []byte("drawing"))
	doc, err := e.svc.SubmitProposal(context.Background(), arch, "req-1", SubmitProposalInput{
		FileKey: stagedKey,
		Remarks: "first draft",
	})
	require.NoError(t, err)
	return doc.ID
}

func TestSubmitProposal_RelocatesAndVersions(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	seedRequirement(t, e, `{}`)

	first := submitProposal(t, e, arch)
	second := submitProposal(t, e, arch)

	d1 := e.ds.proposals[first]
	d2 := e.ds.proposals[second]
	require.Equal(t, 1, d1.Version)
	require.Equal(t, 2, d2.Version)
	require.Equal(t, workflow.DocPending, d1.Status)

	require.False(t, storage.IsStaged(d1.FileKey))
	require.True(t, e.blobs.Has(d1.FileKey))
	for _, key := range e.blobs.Keys() {
		require.False(t, storage.IsStaged(key), "staged upload %s should be cleaned up after commit", key)
	}
}

func TestSubmitProposal_RequiresStagedKey(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	seedRequirement(t, e, `{}`)

	_, err := e.svc.SubmitProposal(context.Background(), arch, "req-1", SubmitProposalInput{
		FileKey: "req-1/doc-1/v1/taken.pdf",
	})
	require.Error(t, err)
}

func TestSubmitProposal_SalesForbidden(t *testing.T) {
	e := newTestService(t)
	sales := e.addUser(t, "sales-1", "sales")
	seedRequirement(t, e, `{}`)

	_, err := e.svc.SubmitProposal(context.Background(), sales, "req-1", SubmitProposalInput{
		FileKey: storage.StagedKey(".pdf"),
	})
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, "FORBIDDEN", derr.Code)
}

func TestReviewProposal_ApproveOutdatesSiblings(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	admin := e.addUser(t, "admin-1", "admin")
	seedRequirement(t, e, `{}`)

	v1 := submitProposal(t, e, arch)
	v2 := submitProposal(t, e, arch)

	doc, err := e.svc.ReviewProposal(context.Background(), admin, v2, ReviewProposalInput{Decision: "approve"})
	require.NoError(t, err)
	require.Equal(t, workflow.DocApproved, doc.Status)
	require.Equal(t, "admin-1", doc.ReviewedBy)
	require.Equal(t, workflow.DocOutdated, e.ds.proposals[v1].Status)

	// Only one approved version per requirement.
	approved := 0
	for _, d := range e.ds.proposals {
		if d.Status == workflow.DocApproved {
			approved++
		}
	}
	require.Equal(t, 1, approved)
}

func TestReviewProposal_Reject(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	admin := e.addUser(t, "admin-1", "admin")
	seedRequirement(t, e, `{}`)

	id := submitProposal(t, e, arch)
	doc, err := e.svc.ReviewProposal(context.Background(), admin, id, ReviewProposalInput{Decision: "reject", Remarks: "wrong plot survey"})
	require.NoError(t, err)
	require.Equal(t, workflow.DocRejected, doc.Status)
	require.Equal(t, "wrong plot survey", doc.Remarks)
}

func TestReviewProposal_ArchitectForbidden(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	seedRequirement(t, e, `{}`)

	id := submitProposal(t, e, arch)
	_, err := e.svc.ReviewProposal(context.Background(), arch, id, ReviewProposalInput{Decision: "approve"})
	require.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestReviewProposal_SettledDocInvalid(t *testing.T) {
	e := newTestService(t)
	arch := e.addUser(t, "arch-1", "architect")
	admin := e.addUser(t, "admin-1", "admin")
	seedRequirement(t, e, `{}`)

	id := submitProposal(t, e, arch)
	_, err := e.svc.ReviewProposal(context.Background(), admin, id, ReviewProposalInput{Decision: "reject"})
	require.NoError(t, err)
	_, err = e.svc.ReviewProposal(context.Background(), admin, id, ReviewProposalInput{Decision: "approve"})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}
