package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/auth"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/config"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/email"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/notify"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/search"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the persistence layer the service uses. The
// atomic runner hands out a transaction-bound instance of the same interface.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]store.User, error)

	InsertLead(ctx context.Context, lead store.Lead) error
	GetLead(ctx context.Context, leadID string) (store.Lead, error)
	ListLeads(ctx context.Context, status, assignedTo string, limit int) ([]store.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID, status string) error
	AssignLead(ctx context.Context, leadID, userID string) error

	InsertRequirement(ctx context.Context, req store.Requirement) error
	GetRequirement(ctx context.Context, requirementID string) (store.Requirement, error)
	ListRequirementsByLead(ctx context.Context, leadID string) ([]store.Requirement, error)
	UpdateRequirementSCP(ctx context.Context, requirementID string, scpData json.RawMessage) error

	InsertSiteVisit(ctx context.Context, visit store.SiteVisit) error
	GetSiteVisit(ctx context.Context, visitID string) (store.SiteVisit, error)
	ListVisitsByRequirement(ctx context.Context, requirementID string) ([]store.SiteVisit, error)
	UpdateSiteVisitData(ctx context.Context, visitID, remarks string, updatedData json.RawMessage, status string) error
	UpdateSiteVisitStatus(ctx context.Context, visitID, status, reviewedBy string) error
	OutdateSiblingVisits(ctx context.Context, requirementID, exceptVisitID string) (int, error)
	InsertVisitFile(ctx context.Context, file store.VisitFile) error
	UpdateVisitFileKey(ctx context.Context, fileID, key string) error
	ListVisitFiles(ctx context.Context, visitID string) ([]store.VisitFile, error)

	InsertProposalDocument(ctx context.Context, doc store.ProposalDocument) error
	GetProposalDocument(ctx context.Context, docID string) (store.ProposalDocument, error)
	ListProposalsByRequirement(ctx context.Context, requirementID string) ([]store.ProposalDocument, error)
	NextProposalVersion(ctx context.Context, requirementID string) (int, error)
	UpdateProposalDocumentStatus(ctx context.Context, docID, status, reviewedBy, remarks string) error
	OutdateApprovedProposals(ctx context.Context, requirementID, exceptDocID string) (int, error)

	InsertBOM(ctx context.Context, bom store.BOM) error
	GetBOM(ctx context.Context, bomID string) (store.BOM, error)
	ListBOMsByRequirement(ctx context.Context, requirementID string) ([]store.BOM, error)
	UpdateBOMItems(ctx context.Context, bomID string, items json.RawMessage) error
	UpdateBOMStatus(ctx context.Context, bomID, status, reviewedBy, remarks string) error

	InsertVendor(ctx context.Context, v store.Vendor) error
	GetVendor(ctx context.Context, vendorID string) (store.Vendor, error)
	ListVendors(ctx context.Context, activeOnly bool) ([]store.Vendor, error)
	SetVendorActive(ctx context.Context, vendorID string, active bool) error

	InsertPurchaseOrder(ctx context.Context, po store.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, poID string) (store.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, bomID, vendorID, status string) ([]store.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, poID, status, notes string) error

	InsertWalletEntry(ctx context.Context, entry store.WalletEntry) (store.WalletEntry, error)
	WalletBalance(ctx context.Context, userID string) (int64, error)
	ListWalletEntries(ctx context.Context, userID string, limit int) ([]store.WalletEntry, error)

	InsertChatMessage(ctx context.Context, msg store.ChatMessage) error
	ListChatMessages(ctx context.Context, room string, limit int) ([]store.ChatMessage, error)
	InsertNotification(ctx context.Context, n store.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, notifID, userID string) error
}

// atomicRunner executes fn inside a single transaction, handing it a
// transaction-bound dataStore.
type atomicRunner interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context, ds dataStore) error) error
}

// txRunner is the production runner: the workflow coordinator over Postgres.
type txRunner struct {
	coord *workflow.Coordinator
	base  *store.PostgresStore
}

func (r *txRunner) RunAtomic(ctx context.Context, fn func(ctx context.Context, ds dataStore) error) error {
	return r.coord.RunAtomic(ctx, func(ctx context.Context, tx store.DBTX) error {
		return fn(ctx, r.base.Bind(tx))
	})
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type eventHub interface {
	Publish(ctx context.Context, ev notify.Event) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	runner   atomicRunner
	blobs    storage.BlobStore
	sessions sessionStore
	hub      eventHub
	search   *search.Service
	mail     *email.Service
}

// New wires the production service. search and mail may be nil.
func New(cfg config.Config, dataStore *store.PostgresStore, coord *workflow.Coordinator, blobs storage.BlobStore, sessions sessionStore, hub eventHub, searchSvc *search.Service, mail *email.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		runner:   &txRunner{coord: coord, base: dataStore},
		blobs:    blobs,
		sessions: sessions,
		hub:      hub,
		search:   searchSvc,
		mail:     mail,
	}
}

// Bootstrap seeds the admin account on an empty database.
func (s *Service) Bootstrap(ctx context.Context) error {
	admins, err := s.store.ListUsersByRole(ctx, string(rbac.RoleAdmin))
	if err != nil {
		return err
	}
	if len(admins) > 0 {
		return nil
	}

	hash, err := auth.HashPassword("orbit-admin")
	if err != nil {
		return err
	}
	return s.store.CreateUser(ctx, store.User{
		ID:           util.NewID("usr"),
		DisplayName:  "Admin",
		Email:        "admin@orbit.local",
		PasswordHash: hash,
		Role:         string(rbac.RoleAdmin),
		Active:       true,
	})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// Register is the public sign-up path. It only accepts the self-service
// roles; staff accounts go through CreateStaffUser under an admin session.
func (s *Service) Register(ctx context.Context, email, password, displayName, role string) (map[string]any, error) {
	normalized := rbac.Normalize(role)
	if !rbac.SelfRegisterable(normalized) {
		return nil, forbidden("Staff accounts are created by an administrator")
	}
	return s.createUser(ctx, email, password, displayName, normalized)
}

// CreateStaffUser provisions an account with any role, including elevated
// ones. Admin only.
func (s *Service) CreateStaffUser(ctx context.Context, sess Session, email, password, displayName, role string) (map[string]any, error) {
	if !s.Can(sess.Role, rbac.ActionAdmin) {
		return nil, forbidden("Only admins create staff accounts")
	}
	return s.createUser(ctx, email, password, displayName, rbac.Normalize(role))
}

func (s *Service) createUser(ctx context.Context, email, password, displayName string, role rbac.Role) (map[string]any, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, validation("email is required", nil)
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, validation(err.Error(), nil)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  strings.TrimSpace(displayName),
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
		Active:       true,
	}
	if user.DisplayName == "" {
		user.DisplayName = email
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return map[string]any{"userId": user.ID, "role": user.Role}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Session{}, auth.ErrBadCredentials
	}
	if !user.Active {
		return Session{}, auth.ErrBadCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, auth.ErrBadCredentials
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Re-read so role or deactivation changes take effect on rotation.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		if !fresh.Active {
			return Session{}, auth.ErrInvalidToken
		}
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, user.Role, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    time.Now().Add(s.cfg.AccessTTL),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	if !user.Active {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Search runs a full-text query over leads and requirements.
func (s *Service) Search(ctx context.Context, text, filterType string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": text}, nil
	}
	resp := s.search.Search(search.Query{
		Text:       text,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
	return map[string]any{"results": resp.Results, "total": resp.Total, "query": resp.Query}, nil
}

// notifyUser persists a notification row and fans it out to the user's room.
// Failures are logged by callers' publish path only; rows are best-effort
// alongside the triggering operation.
func (s *Service) notifyUser(ctx context.Context, userID, kind, body string) {
	_ = s.store.InsertNotification(ctx, store.Notification{
		ID:     util.NewID("ntf"),
		UserID: userID,
		Kind:   kind,
		Body:   body,
	})
	if s.hub != nil {
		_ = s.hub.Publish(ctx, notify.Event{
			Room: "user:" + userID,
			Kind: kind,
			Body: body,
		})
	}
}
