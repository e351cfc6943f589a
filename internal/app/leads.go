package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/search"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
)

type CreateLeadInput struct {
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	Source       string `json:"source"`
}

// CreateLead is the public intake endpoint. No session required.
func (s *Service) CreateLead(ctx context.Context, in CreateLeadInput) (store.Lead, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerName == "" {
		return store.Lead{}, validation("customerName is required", nil)
	}
	if in.Source == "" {
		in.Source = "web"
	}

	lead := store.Lead{
		ID:           util.NewID("led"),
		CustomerName: in.CustomerName,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		City:         strings.TrimSpace(in.City),
		Source:       in.Source,
		Status:       "new",
	}
	if err := s.store.InsertLead(ctx, lead); err != nil {
		return store.Lead{}, err
	}

	s.indexLead(lead)
	return s.store.GetLead(ctx, lead.ID)
}

func (s *Service) GetLead(ctx context.Context, sess Session, leadID string) (store.Lead, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.Lead{}, forbidden("You cannot view leads")
	}
	return s.store.GetLead(ctx, leadID)
}

func (s *Service) ListLeads(ctx context.Context, sess Session, status, assignedTo string, limit int) ([]store.Lead, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view leads")
	}
	return s.store.ListLeads(ctx, status, assignedTo, limit)
}

// AssignLead puts a lead on a sales or architect user's plate and moves it to
// "assigned". The assignee gets a notification and, when SMTP is configured,
// an email.
func (s *Service) AssignLead(ctx context.Context, sess Session, leadID, userID string) (store.Lead, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return store.Lead{}, forbidden("You cannot assign leads")
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return store.Lead{}, err
	}
	assignee, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.Lead{}, validation("assignee not found", nil)
	}

	if err := s.store.AssignLead(ctx, leadID, assignee.ID); err != nil {
		return store.Lead{}, err
	}
	if lead.Status == "new" {
		if err := s.store.UpdateLeadStatus(ctx, leadID, "assigned"); err != nil {
			return store.Lead{}, err
		}
	}

	s.notifyUser(ctx, assignee.ID, "lead.assigned",
		fmt.Sprintf("Lead %s (%s) was assigned to you", lead.ID, lead.CustomerName))
	if s.SMTPConfigured() && assignee.Email != "" {
		go func() {
			_ = s.mail.SendLeadAssignedEmail(assignee.Email, assignee.DisplayName, lead.CustomerName,
				s.cfg.AppBaseURL+"/leads/"+lead.ID)
		}()
	}

	updated, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return store.Lead{}, err
	}
	s.indexLead(updated)
	return updated, nil
}

func (s *Service) UpdateLeadStatus(ctx context.Context, sess Session, leadID, status string) (store.Lead, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return store.Lead{}, forbidden("You cannot update leads")
	}
	switch status {
	case "new", "assigned", "qualified", "converted", "lost":
	default:
		return store.Lead{}, validation("unknown lead status", map[string]any{"status": status})
	}
	if err := s.store.UpdateLeadStatus(ctx, leadID, status); err != nil {
		return store.Lead{}, err
	}
	updated, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return store.Lead{}, err
	}
	s.indexLead(updated)
	return updated, nil
}

type CreateRequirementInput struct {
	Title   string          `json:"title"`
	SCPData json.RawMessage `json:"scpData"`
}

func (s *Service) CreateRequirement(ctx context.Context, sess Session, leadID string, in CreateRequirementInput) (store.Requirement, error) {
	if !s.Can(sess.Role, rbac.ActionWrite) {
		return store.Requirement{}, forbidden("You cannot create requirements")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return store.Requirement{}, validation("title is required", nil)
	}
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		return store.Requirement{}, err
	}
	if len(in.SCPData) == 0 {
		in.SCPData = json.RawMessage(`{}`)
	}

	req := store.Requirement{
		ID:      util.NewID("req"),
		LeadID:  leadID,
		Title:   in.Title,
		SCPData: in.SCPData,
		Status:  "open",
	}
	if err := s.store.InsertRequirement(ctx, req); err != nil {
		return store.Requirement{}, err
	}

	if s.search != nil {
		s.search.IndexRequirement(search.RequirementRecord{
			ID: req.ID, Title: req.Title, LeadID: req.LeadID, Status: req.Status,
		})
	}
	return s.store.GetRequirement(ctx, req.ID)
}

func (s *Service) GetRequirement(ctx context.Context, sess Session, requirementID string) (store.Requirement, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return store.Requirement{}, forbidden("You cannot view requirements")
	}
	return s.store.GetRequirement(ctx, requirementID)
}

func (s *Service) ListRequirements(ctx context.Context, sess Session, leadID string) ([]store.Requirement, error) {
	if !s.Can(sess.Role, rbac.ActionRead) {
		return nil, forbidden("You cannot view requirements")
	}
	return s.store.ListRequirementsByLead(ctx, leadID)
}

func (s *Service) indexLead(lead store.Lead) {
	if s.search == nil {
		return
	}
	s.search.IndexLead(search.LeadRecord{
		ID:           lead.ID,
		CustomerName: lead.CustomerName,
		City:         lead.City,
		Source:       lead.Source,
		Status:       lead.Status,
	})
}
