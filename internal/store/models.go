package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

type Lead struct {
	ID           string
	CustomerName string
	Phone        string
	Email        string
	City         string
	Source       string
	Status       string
	AssignedTo   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Requirement is the canonical record accepted site-visit drafts merge into.
type Requirement struct {
	ID        string
	LeadID    string
	Title     string
	SCPData   json.RawMessage
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SiteVisit struct {
	ID            string
	RequirementID string
	ArchitectID   string
	ScheduledFor  time.Time
	Status        string
	Remarks       string
	UpdatedData   json.RawMessage
	ReviewedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VisitFile references a blob already relocated to its permanent key.
type VisitFile struct {
	ID        string
	VisitID   string
	Key       string
	FileType  string
	CreatedAt time.Time
}

type ProposalDocument struct {
	ID            string
	RequirementID string
	ArchitectID   string
	Version       int
	Status        string
	FileKey       string
	Remarks       string
	ReviewedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type BOM struct {
	ID            string
	RequirementID string
	Title         string
	Items         json.RawMessage
	Status        string
	Remarks       string
	CreatedBy     string
	ReviewedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Vendor struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	GSTIN     string
	Active    bool
	CreatedAt time.Time
}

type PurchaseOrder struct {
	ID        string
	BOMID     string
	VendorID  string
	Status    string
	Amount    int64
	Notes     string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletEntry is one row of the append-only payment ledger. Amounts are in
// the smallest currency unit; Balance is the running balance after the entry.
type WalletEntry struct {
	ID        int64
	UserID    string
	Direction string
	Amount    int64
	Balance   int64
	Reference string
	CreatedBy string
	CreatedAt time.Time
}

type ChatMessage struct {
	ID         string
	Room       string
	SenderID   string
	SenderName string
	Body       string
	CreatedAt  time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}
