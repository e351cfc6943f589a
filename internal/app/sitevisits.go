package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type ScheduleVisitInput struct {
	ArchitectID  string    `json:"architectId"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

func (s *Service) ScheduleVisit(ctx context.Context, sess Session, requirementID string, in ScheduleVisitInput) (store.SiteVisit, error) {
	if !s.Can(sess.Role, rbac.ActionSchedule) {
		return store.SiteVisit{}, forbidden("You cannot schedule site visits")
	}
	if in.ScheduledFor.IsZero() {
		return store.SiteVisit{}, validation("scheduledFor is required", nil)
	}
	if _, err := s.store.GetRequirement(ctx, requirementID); err != nil {
		return store.SiteVisit{}, err
	}
	architect, err := s.store.GetUserByID(ctx, in.ArchitectID)
	if err != nil || rbac.Normalize(architect.Role) != rbac.RoleArchitect {
		return store.SiteVisit{}, validation("architectId must reference an architect", nil)
	}

	visit := store.SiteVisit{
		ID:            util.NewID("vst"),
		RequirementID: requirementID,
		ArchitectID:   architect.ID,
		ScheduledFor:  in.ScheduledFor,
		Status:        workflow.VisitScheduled,
	}
	if err := s.store.InsertSiteVisit(ctx, visit); err != nil {
		return store.SiteVisit{}, err
	}

	s.notifyUser(ctx, architect.ID, "visit.scheduled",
		fmt.Sprintf("Site visit %s scheduled for %s", visit.ID, in.ScheduledFor.Format(time.RFC3339)))
	return s.store.GetSiteVisit(ctx, visit.ID)
}

func (s *Service) GetVisit(ctx context.Context, sess Session, visitID string) (store.SiteVisit, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.SiteVisit{}, forbidden("You cannot view site visits")
	}
	return s.store.GetSiteVisit(ctx, visitID)
}

func (s *Service) ListVisits(ctx context.Context, sess Session, requirementID string) ([]store.SiteVisit, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view site visits")
	}
	return s.store.ListVisitsByRequirement(ctx, requirementID)
}

func (s *Service) ListVisitFiles(ctx context.Context, sess Session, visitID string) ([]store.VisitFile, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view site visits")
	}
	return s.store.ListVisitFiles(ctx, visitID)
}

type VisitFileInput struct {
	Key      string `json:"key"`
	FileType string `json:"fileType"`
}

type SaveVisitDataInput struct {
	Remarks     string           `json:"remarks"`
	UpdatedData json.RawMessage  `json:"updatedData"`
	Files       []VisitFileInput `json:"files"`
}

// SaveVisitData records the architect's captured draft on a visit. A visit
// still in Scheduled moves to InProgress on first save. Attached file keys
// must be staged uploads; they stay staged until approval relocates them.
func (s *Service) SaveVisitData(ctx context.Context, sess Session, visitID string, in SaveVisitDataInput) (store.SiteVisit, error) {
	visit, err := s.store.GetSiteVisit(ctx, visitID)
	if err != nil {
		return store.SiteVisit{}, err
	}
	role := rbac.Normalize(sess.Role)
	if role != rbac.RoleAdmin && visit.ArchitectID != sess.UserID {
		return store.SiteVisit{}, forbidden("Only the assigned architect can record visit data")
	}

	status := visit.Status
	if status == workflow.VisitScheduled {
		if _, err := workflow.SiteVisitMachine.Step(workflow.VisitScheduled, workflow.VisitInProgress, role, workflow.Subject{}); err != nil {
			return store.SiteVisit{}, err
		}
		status = workflow.VisitInProgress
	}
	if status != workflow.VisitInProgress {
		return store.SiteVisit{}, fmt.Errorf("site visit %s is %s: %w", visitID, visit.Status, workflow.ErrInvalidTransition)
	}

	for _, f := range in.Files {
		if !storage.IsStaged(f.Key) {
			return store.SiteVisit{}, validation("file keys must be staged uploads", map[string]any{"key": f.Key})
		}
	}

	if len(in.UpdatedData) == 0 {
		in.UpdatedData = visit.UpdatedData
	}
	if err := s.store.UpdateSiteVisitData(ctx, visitID, in.Remarks, in.UpdatedData, status); err != nil {
		return store.SiteVisit{}, err
	}
	for _, f := range in.Files {
		file := store.VisitFile{
			ID:       util.NewID("vsf"),
			VisitID:  visitID,
			Key:      f.Key,
			FileType: f.FileType,
		}
		if err := s.store.InsertVisitFile(ctx, file); err != nil {
			return store.SiteVisit{}, err
		}
	}

	return s.store.GetSiteVisit(ctx, visitID)
}

// CompleteVisit marks a visit ready for review. The machine requires remarks
// or captured data before the edge opens.
func (s *Service) CompleteVisit(ctx context.Context, sess Session, visitID string) (store.SiteVisit, error) {
	visit, err := s.store.GetSiteVisit(ctx, visitID)
	if err != nil {
		return store.SiteVisit{}, err
	}
	role := rbac.Normalize(sess.Role)
	if role != rbac.RoleAdmin && visit.ArchitectID != sess.UserID {
		return store.SiteVisit{}, forbidden("Only the assigned architect can complete this visit")
	}

	subject := workflow.Subject{Remarks: visit.Remarks, HasData: len(visit.UpdatedData) > 0 && string(visit.UpdatedData) != "{}"}
	if _, err := workflow.SiteVisitMachine.Step(visit.Status, workflow.VisitCompleted, role, subject); err != nil {
		return store.SiteVisit{}, err
	}
	if err := s.store.UpdateSiteVisitStatus(ctx, visitID, workflow.VisitCompleted, ""); err != nil {
		return store.SiteVisit{}, err
	}
	return s.store.GetSiteVisit(ctx, visitID)
}

func (s *Service) CancelVisit(ctx context.Context, sess Session, visitID string) (store.SiteVisit, error) {
	visit, err := s.store.GetSiteVisit(ctx, visitID)
	if err != nil {
		return store.SiteVisit{}, err
	}
	role := rbac.Normalize(sess.Role)
	if _, err := workflow.SiteVisitMachine.Step(visit.Status, workflow.VisitCancelled, role, workflow.Subject{}); err != nil {
		return store.SiteVisit{}, err
	}
	if err := s.store.UpdateSiteVisitStatus(ctx, visitID, workflow.VisitCancelled, sess.UserID); err != nil {
		return store.SiteVisit{}, err
	}
	return s.store.GetSiteVisit(ctx, visitID)
}

// ApproveVisit accepts a completed visit: inside one transaction its staged
// files move to permanent keys, its captured data merges into the
// requirement's canonical record, and every other open visit on the
// requirement is marked Outdated. A failure anywhere rolls the database back
// and removes any blobs already copied; staged uploads are only deleted after
// commit.
func (s *Service) ApproveVisit(ctx context.Context, sess Session, visitID string) (store.SiteVisit, error) {
	role := rbac.Normalize(sess.Role)

	visit, err := s.store.GetSiteVisit(ctx, visitID)
	if err != nil {
		return store.SiteVisit{}, err
	}
	subject := workflow.Subject{Remarks: visit.Remarks, HasData: len(visit.UpdatedData) > 0}
	if _, err := workflow.SiteVisitMachine.Step(visit.Status, workflow.VisitApproved, role, subject); err != nil {
		return store.SiteVisit{}, err
	}

	reloc := workflow.NewRelocator(s.blobs)
	err = s.runner.RunAtomic(ctx, func(ctx context.Context, ds dataStore) error {
		// Re-read under the transaction; a concurrent approval may have
		// already moved or outdated this visit.
		v, err := ds.GetSiteVisit(ctx, visitID)
		if err != nil {
			return err
		}
		rule, err := workflow.SiteVisitMachine.Step(v.Status, workflow.VisitApproved, role,
			workflow.Subject{Remarks: v.Remarks, HasData: len(v.UpdatedData) > 0})
		if err != nil {
			return err
		}

		files, err := ds.ListVisitFiles(ctx, visitID)
		if err != nil {
			return err
		}
		for _, f := range files {
			if !storage.IsStaged(f.Key) {
				continue
			}
			newKey := storage.PermanentKey(v.RequirementID, v.ID, f.ID, path.Ext(f.Key))
			if err := reloc.Relocate(ctx, f.Key, newKey); err != nil {
				return err
			}
			if err := ds.UpdateVisitFileKey(ctx, f.ID, newKey); err != nil {
				return err
			}
		}

		if rule.Merge {
			req, err := ds.GetRequirement(ctx, v.RequirementID)
			if err != nil {
				return err
			}
			merged, err := mergeJSON(req.SCPData, v.UpdatedData)
			if err != nil {
				return fmt.Errorf("merge visit data: %v: %w", err, workflow.ErrPreconditionFailed)
			}
			if err := ds.UpdateRequirementSCP(ctx, v.RequirementID, merged); err != nil {
				return err
			}
		}

		if err := ds.UpdateSiteVisitStatus(ctx, visitID, workflow.VisitApproved, sess.UserID); err != nil {
			return err
		}
		if _, err := ds.OutdateSiblingVisits(ctx, v.RequirementID, visitID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		reloc.Compensate(ctx)
		return store.SiteVisit{}, err
	}
	reloc.Finalize(ctx)

	s.notifyUser(ctx, visit.ArchitectID, "visit.approved",
		fmt.Sprintf("Site visit %s was approved", visitID))
	if s.SMTPConfigured() {
		if architect, err := s.store.GetUserByID(ctx, visit.ArchitectID); err == nil && architect.Email != "" {
			go func() {
				_ = s.mail.SendVisitApprovedEmail(architect.Email, architect.DisplayName,
					s.cfg.AppBaseURL+"/requirements/"+visit.RequirementID)
			}()
		}
	}

	return s.store.GetSiteVisit(ctx, visitID)
}

// mergeJSON shallow-merges patch's top-level keys over base. Both must be
// JSON objects; an empty patch returns base unchanged.
func mergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(patch) == 0 || string(patch) == "null" {
		return base, nil
	}
	dst := map[string]json.RawMessage{}
	if len(base) > 0 && string(base) != "null" {
		if err := json.Unmarshal(base, &dst); err != nil {
			return nil, err
		}
	}
	src := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, err
	}
	for k, v := range src {
		dst[k] = v
	}
	return json.Marshal(dst)
}
