package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/auth"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/session"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Public lead intake — the one unauthenticated write.
	if r.Method == http.MethodPost && r.URL.Path == "/api/leads" {
		var body CreateLeadInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		lead, err := s.service.CreateLead(r.Context(), body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, leadPayload(lead))
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		var body struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resp, err := s.service.Register(r.Context(), body.Email, body.Password, body.DisplayName, body.Role)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "role": session.Role})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)
		resp, err := s.service.Search(r.Context(), q, filterType, limit, offset)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "leads":
		s.handleLeads(w, r, session, parts[2:])
	case "requirements":
		s.handleRequirements(w, r, session, parts[2:])
	case "visits":
		s.handleVisits(w, r, session, parts[2:])
	case "proposals":
		s.handleProposals(w, r, session, parts[2:])
	case "boms":
		s.handleBOMs(w, r, session, parts[2:])
	case "vendors":
		s.handleVendors(w, r, session, parts[2:])
	case "purchase-orders":
		s.handlePurchaseOrders(w, r, session, parts[2:])
	case "wallet":
		s.handleWallet(w, r, session, parts[2:])
	case "files":
		s.handleFiles(w, r, session, parts[2:])
	case "chat":
		s.handleChat(w, r, session, parts[2:])
	case "notifications":
		s.handleNotifications(w, r, session, parts[2:])
	case "users":
		s.handleUsers(w, r, session, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resp, err := s.service.CreateStaffUser(r.Context(), session, body.Email, body.Password, body.DisplayName, body.Role)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleLeads(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		assignedTo := strings.TrimSpace(r.URL.Query().Get("assignedTo"))
		limit := queryInt(r, "limit", 50)
		leads, err := s.service.ListLeads(r.Context(), session, status, assignedTo, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(leads))
		for _, l := range leads {
			out = append(out, leadPayload(l))
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": out})

	case r.Method == http.MethodGet && len(rest) == 1:
		lead, err := s.service.GetLead(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, leadPayload(lead))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "assign":
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		lead, err := s.service.AssignLead(r.Context(), session, rest[0], body.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, leadPayload(lead))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "status":
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		lead, err := s.service.UpdateLeadStatus(r.Context(), session, rest[0], body.Status)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, leadPayload(lead))

	case len(rest) == 2 && rest[1] == "requirements":
		if r.Method == http.MethodPost {
			var body CreateRequirementInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			req, err := s.service.CreateRequirement(r.Context(), session, rest[0], body)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, requirementPayload(req))
			return
		}
		if r.Method == http.MethodGet {
			reqs, err := s.service.ListRequirements(r.Context(), session, rest[0])
			if err != nil {
				respondError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(reqs))
			for _, rq := range reqs {
				out = append(out, requirementPayload(rq))
			}
			writeJSON(w, http.StatusOK, map[string]any{"requirements": out})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleRequirements(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		req, err := s.service.GetRequirement(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requirementPayload(req))

	case len(rest) == 2 && rest[1] == "visits":
		if r.Method == http.MethodPost {
			var body ScheduleVisitInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			visit, err := s.service.ScheduleVisit(r.Context(), session, rest[0], body)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, visitPayload(visit))
			return
		}
		if r.Method == http.MethodGet {
			visits, err := s.service.ListVisits(r.Context(), session, rest[0])
			if err != nil {
				respondError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(visits))
			for _, v := range visits {
				out = append(out, visitPayload(v))
			}
			writeJSON(w, http.StatusOK, map[string]any{"visits": out})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	case len(rest) == 2 && rest[1] == "proposals":
		if r.Method == http.MethodPost {
			var body SubmitProposalInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			doc, err := s.service.SubmitProposal(r.Context(), session, rest[0], body)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, proposalPayload(doc))
			return
		}
		if r.Method == http.MethodGet {
			docs, err := s.service.ListProposals(r.Context(), session, rest[0])
			if err != nil {
				respondError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				out = append(out, proposalPayload(d))
			}
			writeJSON(w, http.StatusOK, map[string]any{"proposals": out})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	case len(rest) == 2 && rest[1] == "boms":
		if r.Method == http.MethodPost {
			var body CreateBOMInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			bom, err := s.service.CreateBOM(r.Context(), session, rest[0], body)
			if err != nil {
				respondError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, bomPayload(bom))
			return
		}
		if r.Method == http.MethodGet {
			boms, err := s.service.ListBOMs(r.Context(), session, rest[0])
			if err != nil {
				respondError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(boms))
			for _, b := range boms {
				out = append(out, bomPayload(b))
			}
			writeJSON(w, http.StatusOK, map[string]any{"boms": out})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleVisits(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		visit, err := s.service.GetVisit(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visitPayload(visit))

	case r.Method == http.MethodPut && len(rest) == 2 && rest[1] == "data":
		var body SaveVisitDataInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		visit, err := s.service.SaveVisitData(r.Context(), session, rest[0], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visitPayload(visit))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "complete":
		visit, err := s.service.CompleteVisit(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visitPayload(visit))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "approve":
		visit, err := s.service.ApproveVisit(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visitPayload(visit))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "cancel":
		visit, err := s.service.CancelVisit(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visitPayload(visit))

	case r.Method == http.MethodGet && len(rest) == 2 && rest[1] == "files":
		files, err := s.service.ListVisitFiles(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(files))
		for _, f := range files {
			out = append(out, map[string]any{
				"id":        f.ID,
				"visitId":   f.VisitID,
				"key":       f.Key,
				"fileType":  f.FileType,
				"createdAt": f.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": out})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleProposals(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		doc, err := s.service.GetProposal(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proposalPayload(doc))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "review":
		var body ReviewProposalInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.ReviewProposal(r.Context(), session, rest[0], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proposalPayload(doc))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleBOMs(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 1:
		bom, err := s.service.GetBOM(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bomPayload(bom))

	case r.Method == http.MethodPut && len(rest) == 2 && rest[1] == "items":
		var body struct {
			Items json.RawMessage `json:"items"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		bom, err := s.service.UpdateBOMItems(r.Context(), session, rest[0], body.Items)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bomPayload(bom))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "transition":
		var body TransitionBOMInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		bom, err := s.service.TransitionBOM(r.Context(), session, rest[0], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bomPayload(bom))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "purchase-orders":
		var body CreatePurchaseOrderInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		po, err := s.service.CreatePurchaseOrder(r.Context(), session, rest[0], body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, purchaseOrderPayload(po))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleVendors(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		var body VendorInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		vendor, err := s.service.CreateVendor(r.Context(), session, body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, vendorPayload(vendor))

	case r.Method == http.MethodGet && len(rest) == 0:
		activeOnly := r.URL.Query().Get("active") == "true"
		vendors, err := s.service.ListVendors(r.Context(), session, activeOnly)
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(vendors))
		for _, v := range vendors {
			out = append(out, vendorPayload(v))
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendors": out})

	case r.Method == http.MethodGet && len(rest) == 1:
		vendor, err := s.service.GetVendor(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vendorPayload(vendor))

	case r.Method == http.MethodPut && len(rest) == 2 && rest[1] == "active":
		var body struct {
			Active bool `json:"active"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		vendor, err := s.service.SetVendorActive(r.Context(), session, rest[0], body.Active)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vendorPayload(vendor))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePurchaseOrders(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		bomID := strings.TrimSpace(r.URL.Query().Get("bomId"))
		vendorID := strings.TrimSpace(r.URL.Query().Get("vendorId"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		orders, err := s.service.ListPurchaseOrders(r.Context(), session, bomID, vendorID, status)
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(orders))
		for _, po := range orders {
			out = append(out, purchaseOrderPayload(po))
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchaseOrders": out})

	case r.Method == http.MethodGet && len(rest) == 1:
		po, err := s.service.GetPurchaseOrder(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, purchaseOrderPayload(po))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "status":
		var body struct {
			Status string `json:"status"`
			Notes  string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		po, err := s.service.UpdatePurchaseOrderStatus(r.Context(), session, rest[0], body.Status, body.Notes)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, purchaseOrderPayload(po))

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleWallet(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 1 && (rest[0] == "credit" || rest[0] == "debit"):
		var body WalletMoveInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		var entry store.WalletEntry
		var err error
		if rest[0] == "credit" {
			entry, err = s.service.CreditWallet(r.Context(), session, body)
		} else {
			entry, err = s.service.DebitWallet(r.Context(), session, body)
		}
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, walletEntryPayload(entry))

	case r.Method == http.MethodGet && len(rest) == 2 && rest[1] == "balance":
		balance, err := s.service.WalletBalance(r.Context(), session, rest[0])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"userId": rest[0], "balance": balance})

	case r.Method == http.MethodGet && len(rest) == 2 && rest[1] == "entries":
		entries, err := s.service.WalletLedger(r.Context(), session, rest[0], queryInt(r, "limit", 50))
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, walletEntryPayload(e))
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": out})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "presign-upload":
		var body struct {
			FileName string `json:"fileName"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resp, err := s.service.PresignUpload(r.Context(), session, body.FileName)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "presign-download":
		key := strings.TrimSpace(r.URL.Query().Get("key"))
		if key == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "key is required", nil)
			return
		}
		resp, err := s.service.PresignDownload(r.Context(), session, key)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) != 2 || rest[1] != "messages" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	room := rest[0]

	switch r.Method {
	case http.MethodPost:
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		msg, err := s.service.PostMessage(r.Context(), session, room, body.Body)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, chatMessagePayload(msg))

	case http.MethodGet:
		msgs, err := s.service.ChatHistory(r.Context(), session, room, queryInt(r, "limit", 50))
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, chatMessagePayload(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": out})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		unreadOnly := r.URL.Query().Get("unread") == "true"
		items, err := s.service.ListNotifications(r.Context(), session, unreadOnly, queryInt(r, "limit", 50))
		if err != nil {
			respondError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(items))
		for _, n := range items {
			out = append(out, map[string]any{
				"id":        n.ID,
				"kind":      n.Kind,
				"body":      n.Body,
				"readAt":    n.ReadAt,
				"createdAt": n.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": out})

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "read":
		if err := s.service.MarkNotificationRead(r.Context(), session, rest[0]); err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// Payload builders keep wire shapes in one place.

func leadPayload(l store.Lead) map[string]any {
	return map[string]any{
		"id":           l.ID,
		"customerName": l.CustomerName,
		"phone":        l.Phone,
		"email":        l.Email,
		"city":         l.City,
		"source":       l.Source,
		"status":       l.Status,
		"assignedTo":   l.AssignedTo,
		"createdAt":    l.CreatedAt,
		"updatedAt":    l.UpdatedAt,
	}
}

func requirementPayload(r store.Requirement) map[string]any {
	return map[string]any{
		"id":        r.ID,
		"leadId":    r.LeadID,
		"title":     r.Title,
		"scpData":   r.SCPData,
		"status":    r.Status,
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	}
}

func visitPayload(v store.SiteVisit) map[string]any {
	return map[string]any{
		"id":            v.ID,
		"requirementId": v.RequirementID,
		"architectId":   v.ArchitectID,
		"scheduledFor":  v.ScheduledFor,
		"status":        v.Status,
		"remarks":       v.Remarks,
		"updatedData":   v.UpdatedData,
		"reviewedBy":    v.ReviewedBy,
		"createdAt":     v.CreatedAt,
		"updatedAt":     v.UpdatedAt,
	}
}

func proposalPayload(d store.ProposalDocument) map[string]any {
	return map[string]any{
		"id":            d.ID,
		"requirementId": d.RequirementID,
		"architectId":   d.ArchitectID,
		"version":       d.Version,
		"status":        d.Status,
		"fileKey":       d.FileKey,
		"remarks":       d.Remarks,
		"reviewedBy":    d.ReviewedBy,
		"createdAt":     d.CreatedAt,
		"updatedAt":     d.UpdatedAt,
	}
}

func bomPayload(b store.BOM) map[string]any {
	return map[string]any{
		"id":            b.ID,
		"requirementId": b.RequirementID,
		"title":         b.Title,
		"items":         b.Items,
		"status":        b.Status,
		"remarks":       b.Remarks,
		"createdBy":     b.CreatedBy,
		"reviewedBy":    b.ReviewedBy,
		"createdAt":     b.CreatedAt,
		"updatedAt":     b.UpdatedAt,
	}
}

func vendorPayload(v store.Vendor) map[string]any {
	return map[string]any{
		"id":        v.ID,
		"name":      v.Name,
		"email":     v.Email,
		"phone":     v.Phone,
		"gstin":     v.GSTIN,
		"active":    v.Active,
		"createdAt": v.CreatedAt,
	}
}

func purchaseOrderPayload(po store.PurchaseOrder) map[string]any {
	return map[string]any{
		"id":        po.ID,
		"bomId":     po.BOMID,
		"vendorId":  po.VendorID,
		"status":    po.Status,
		"amount":    po.Amount,
		"notes":     po.Notes,
		"createdBy": po.CreatedBy,
		"createdAt": po.CreatedAt,
		"updatedAt": po.UpdatedAt,
	}
}

func walletEntryPayload(e store.WalletEntry) map[string]any {
	return map[string]any{
		"id":        e.ID,
		"userId":    e.UserID,
		"direction": e.Direction,
		"amount":    e.Amount,
		"balance":   e.Balance,
		"reference": e.Reference,
		"createdBy": e.CreatedBy,
		"createdAt": e.CreatedAt,
	}
}

func chatMessagePayload(m store.ChatMessage) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"room":       m.Room,
		"senderId":   m.SenderID,
		"senderName": m.SenderName,
		"body":       m.Body,
		"createdAt":  m.CreatedAt,
	}
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userName":     session.UserName,
		"userId":       session.UserID,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt,
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, workflow.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, "PRECONDITION_FAILED", err.Error(), nil
	case errors.Is(err, workflow.ErrStorageFailure):
		return http.StatusBadGateway, "STORAGE_ERROR", "Storage error", nil
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
