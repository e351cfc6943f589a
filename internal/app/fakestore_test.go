package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/config"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/session"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/storage"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/workflow"
)

// fakeStore is an in-memory dataStore. It has no transactional semantics of
// its own; test scenarios that need rollback behavior assert against the
// coordinator directly.
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]store.User
	leads         map[string]store.Lead
	requirements  map[string]store.Requirement
	visits        map[string]store.SiteVisit
	visitFiles    map[string]store.VisitFile
	proposals     map[string]store.ProposalDocument
	boms          map[string]store.BOM
	vendors       map[string]store.Vendor
	orders        map[string]store.PurchaseOrder
	walletEntries []store.WalletEntry
	messages      []store.ChatMessage
	notifications map[string]store.Notification

	failUpdateSCP bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]store.User{},
		leads:         map[string]store.Lead{},
		requirements:  map[string]store.Requirement{},
		visits:        map[string]store.SiteVisit{},
		visitFiles:    map[string]store.VisitFile{},
		proposals:     map[string]store.ProposalDocument{},
		boms:          map[string]store.BOM{},
		vendors:       map[string]store.Vendor{},
		orders:        map[string]store.PurchaseOrder{},
		notifications: map[string]store.Notification{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) ListUsersByRole(ctx context.Context, role string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertLead(ctx context.Context, lead store.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt
	f.leads[lead.ID] = lead
	return nil
}

func (f *fakeStore) GetLead(ctx context.Context, leadID string) (store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok {
		return store.Lead{}, sql.ErrNoRows
	}
	return l, nil
}

func (f *fakeStore) ListLeads(ctx context.Context, status, assignedTo string, limit int) ([]store.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Lead
	for _, l := range f.leads {
		if status != "" && l.Status != status {
			continue
		}
		if assignedTo != "" && (l.AssignedTo == nil || *l.AssignedTo != assignedTo) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateLeadStatus(ctx context.Context, leadID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok {
		return sql.ErrNoRows
	}
	l.Status = status
	f.leads[leadID] = l
	return nil
}

func (f *fakeStore) AssignLead(ctx context.Context, leadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok {
		return sql.ErrNoRows
	}
	l.AssignedTo = &userID
	f.leads[leadID] = l
	return nil
}

func (f *fakeStore) InsertRequirement(ctx context.Context, req store.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.CreatedAt = time.Now()
	f.requirements[req.ID] = req
	return nil
}

func (f *fakeStore) GetRequirement(ctx context.Context, requirementID string) (store.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requirements[requirementID]
	if !ok {
		return store.Requirement{}, sql.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) ListRequirementsByLead(ctx context.Context, leadID string) ([]store.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Requirement
	for _, r := range f.requirements {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRequirementSCP(ctx context.Context, requirementID string, scpData json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateSCP {
		return workflow.ErrStorageFailure
	}
	r, ok := f.requirements[requirementID]
	if !ok {
		return sql.ErrNoRows
	}
	r.SCPData = scpData
	f.requirements[requirementID] = r
	return nil
}

func (f *fakeStore) InsertSiteVisit(ctx context.Context, visit store.SiteVisit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	visit.CreatedAt = time.Now()
	f.visits[visit.ID] = visit
	return nil
}

func (f *fakeStore) GetSiteVisit(ctx context.Context, visitID string) (store.SiteVisit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok {
		return store.SiteVisit{}, sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) ListVisitsByRequirement(ctx context.Context, requirementID string) ([]store.SiteVisit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.SiteVisit
	for _, v := range f.visits {
		if v.RequirementID == requirementID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateSiteVisitData(ctx context.Context, visitID, remarks string, updatedData json.RawMessage, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Remarks = remarks
	v.UpdatedData = updatedData
	v.Status = status
	f.visits[visitID] = v
	return nil
}

func (f *fakeStore) UpdateSiteVisitStatus(ctx context.Context, visitID, status, reviewedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Status = status
	if reviewedBy != "" {
		v.ReviewedBy = reviewedBy
	}
	f.visits[visitID] = v
	return nil
}

func (f *fakeStore) OutdateSiblingVisits(ctx context.Context, requirementID, exceptVisitID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, v := range f.visits {
		if v.RequirementID != requirementID || id == exceptVisitID {
			continue
		}
		switch v.Status {
		case workflow.VisitScheduled, workflow.VisitInProgress, workflow.VisitCompleted:
			v.Status = workflow.VisitOutdated
			f.visits[id] = v
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertVisitFile(ctx context.Context, file store.VisitFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file.CreatedAt = time.Now()
	f.visitFiles[file.ID] = file
	return nil
}

func (f *fakeStore) UpdateVisitFileKey(ctx context.Context, fileID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vf, ok := f.visitFiles[fileID]
	if !ok {
		return sql.ErrNoRows
	}
	vf.Key = key
	f.visitFiles[fileID] = vf
	return nil
}

func (f *fakeStore) ListVisitFiles(ctx context.Context, visitID string) ([]store.VisitFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.VisitFile
	for _, vf := range f.visitFiles {
		if vf.VisitID == visitID {
			out = append(out, vf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) InsertProposalDocument(ctx context.Context, doc store.ProposalDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc.CreatedAt = time.Now()
	f.proposals[doc.ID] = doc
	return nil
}

func (f *fakeStore) GetProposalDocument(ctx context.Context, docID string) (store.ProposalDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.proposals[docID]
	if !ok {
		return store.ProposalDocument{}, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeStore) ListProposalsByRequirement(ctx context.Context, requirementID string) ([]store.ProposalDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ProposalDocument
	for _, d := range f.proposals {
		if d.RequirementID == requirementID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f *fakeStore) NextProposalVersion(ctx context.Context, requirementID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, d := range f.proposals {
		if d.RequirementID == requirementID && d.Version > max {
			max = d.Version
		}
	}
	return max + 1, nil
}

func (f *fakeStore) UpdateProposalDocumentStatus(ctx context.Context, docID, status, reviewedBy, remarks string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.proposals[docID]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = status
	d.ReviewedBy = reviewedBy
	if remarks != "" {
		d.Remarks = remarks
	}
	f.proposals[docID] = d
	return nil
}

func (f *fakeStore) OutdateApprovedProposals(ctx context.Context, requirementID, exceptDocID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, d := range f.proposals {
		if d.RequirementID != requirementID || id == exceptDocID {
			continue
		}
		if d.Status == workflow.DocPending || d.Status == workflow.DocApproved {
			d.Status = workflow.DocOutdated
			f.proposals[id] = d
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertBOM(ctx context.Context, bom store.BOM) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bom.CreatedAt = time.Now()
	f.boms[bom.ID] = bom
	return nil
}

func (f *fakeStore) GetBOM(ctx context.Context, bomID string) (store.BOM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boms[bomID]
	if !ok {
		return store.BOM{}, sql.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) ListBOMsByRequirement(ctx context.Context, requirementID string) ([]store.BOM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.BOM
	for _, b := range f.boms {
		if b.RequirementID == requirementID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateBOMItems(ctx context.Context, bomID string, items json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boms[bomID]
	if !ok {
		return sql.ErrNoRows
	}
	b.Items = items
	f.boms[bomID] = b
	return nil
}

func (f *fakeStore) UpdateBOMStatus(ctx context.Context, bomID, status, reviewedBy, remarks string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boms[bomID]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	if reviewedBy != "" {
		b.ReviewedBy = reviewedBy
	}
	if remarks != "" {
		b.Remarks = remarks
	}
	f.boms[bomID] = b
	return nil
}

func (f *fakeStore) InsertVendor(ctx context.Context, v store.Vendor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.CreatedAt = time.Now()
	f.vendors[v.ID] = v
	return nil
}

func (f *fakeStore) GetVendor(ctx context.Context, vendorID string) (store.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vendors[vendorID]
	if !ok {
		return store.Vendor{}, sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) ListVendors(ctx context.Context, activeOnly bool) ([]store.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Vendor
	for _, v := range f.vendors {
		if activeOnly && !v.Active {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) SetVendorActive(ctx context.Context, vendorID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vendors[vendorID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Active = active
	f.vendors[vendorID] = v
	return nil
}

func (f *fakeStore) InsertPurchaseOrder(ctx context.Context, po store.PurchaseOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	po.CreatedAt = time.Now()
	f.orders[po.ID] = po
	return nil
}

func (f *fakeStore) GetPurchaseOrder(ctx context.Context, poID string) (store.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.orders[poID]
	if !ok {
		return store.PurchaseOrder{}, sql.ErrNoRows
	}
	return po, nil
}

func (f *fakeStore) ListPurchaseOrders(ctx context.Context, bomID, vendorID, status string) ([]store.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.PurchaseOrder
	for _, po := range f.orders {
		if bomID != "" && po.BOMID != bomID {
			continue
		}
		if vendorID != "" && po.VendorID != vendorID {
			continue
		}
		if status != "" && po.Status != status {
			continue
		}
		out = append(out, po)
	}
	return out, nil
}

func (f *fakeStore) UpdatePurchaseOrderStatus(ctx context.Context, poID, status, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	po, ok := f.orders[poID]
	if !ok {
		return sql.ErrNoRows
	}
	po.Status = status
	if notes != "" {
		po.Notes = notes
	}
	f.orders[poID] = po
	return nil
}

func (f *fakeStore) InsertWalletEntry(ctx context.Context, entry store.WalletEntry) (store.WalletEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance := int64(0)
	for i := len(f.walletEntries) - 1; i >= 0; i-- {
		if f.walletEntries[i].UserID == entry.UserID {
			balance = f.walletEntries[i].Balance
			break
		}
	}
	switch entry.Direction {
	case "credit":
		balance += entry.Amount
	case "debit":
		if balance < entry.Amount {
			return store.WalletEntry{}, store.ErrInsufficientFunds
		}
		balance -= entry.Amount
	}
	entry.Balance = balance
	entry.ID = int64(len(f.walletEntries) + 1)
	entry.CreatedAt = time.Now()
	f.walletEntries = append(f.walletEntries, entry)
	return entry, nil
}

func (f *fakeStore) WalletBalance(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.walletEntries) - 1; i >= 0; i-- {
		if f.walletEntries[i].UserID == userID {
			return f.walletEntries[i].Balance, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) ListWalletEntries(ctx context.Context, userID string, limit int) ([]store.WalletEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.WalletEntry
	for i := len(f.walletEntries) - 1; i >= 0; i-- {
		if f.walletEntries[i].UserID == userID {
			out = append(out, f.walletEntries[i])
		}
	}
	return out, nil
}

func (f *fakeStore) InsertChatMessage(ctx context.Context, msg store.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) ListChatMessages(ctx context.Context, room string, limit int) ([]store.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ChatMessage
	for _, m := range f.messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n store.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, notifID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[notifID]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
		f.notifications[notifID] = n
	}
	return nil
}

// fakeRunner drives the real coordinator against a throwaway sqlite database
// so atomic scopes behave genuinely, then hands fn the shared fake store.
type fakeRunner struct {
	coord *workflow.Coordinator
	ds    *fakeStore
}

func newFakeRunner(t *testing.T, ds *fakeStore) *fakeRunner {
	t.Helper()
	db, err := sql.Open("sqlite", "file:app_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	return &fakeRunner{coord: workflow.NewCoordinator(db), ds: ds}
}

func (r *fakeRunner) RunAtomic(ctx context.Context, fn func(ctx context.Context, ds dataStore) error) error {
	return r.coord.RunAtomic(ctx, func(ctx context.Context, _ store.DBTX) error {
		return fn(ctx, r.ds)
	})
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]store.User{}}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, session.ErrSessionNotFound
	}
	return u, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

type testEnv struct {
	svc   *Service
	ds    *fakeStore
	blobs *storage.MemoryStore
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	ds := newFakeStore()
	blobs := storage.NewMemoryStore()
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
		},
		store:    ds,
		runner:   newFakeRunner(t, ds),
		blobs:    blobs,
		sessions: newFakeSessions(),
	}
	return &testEnv{svc: svc, ds: ds, blobs: blobs}
}

func (e *testEnv) addUser(t *testing.T, id, role string) Session {
	t.Helper()
	e.ds.users[id] = store.User{
		ID:          id,
		DisplayName: id,
		Email:       id + "@orbit.test",
		Role:        role,
		Active:      true,
	}
	return Session{UserID: id, UserName: id, Role: role}
}
