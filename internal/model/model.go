package model

import (
	"time"

	"github.com/adarsh745/etaxmentor-sub000/internal/filing"
)

type User struct {
	ID            string
	Email         string
	Name          string
	Phone         *string
	Role          string
	Status        string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

const (
	UserStatusActive              = "ACTIVE"
	UserStatusSuspended           = "SUSPENDED"
	UserStatusPendingVerification = "PENDING_VERIFICATION"
)

type Credential struct {
	UserID       string
	PasswordHash string
	RotatedAt    time.Time
}

type Session struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	UserAgent *string
	IPAddress *string
}

// ITRFormData holds the amounts of an income-tax return. Values are whole
// rupees as integers so repeated read/update cycles never lose precision.
type ITRFormData struct {
	SalaryIncome     int64 `json:"salaryIncome"`
	BusinessIncome   int64 `json:"businessIncome"`
	CapitalGains     int64 `json:"capitalGains"`
	OtherIncome      int64 `json:"otherIncome"`
	Section80C       int64 `json:"section80C"`
	Section80D       int64 `json:"section80D"`
	HomeLoanInterest int64 `json:"homeLoanInterest"`
	TDSPaid          int64 `json:"tdsPaid"`
	AdvanceTaxPaid   int64 `json:"advanceTaxPaid"`
}

type GSTFormData struct {
	OutwardTaxableValue int64 `json:"outwardTaxableValue"`
	InwardTaxableValue  int64 `json:"inwardTaxableValue"`
	CGSTAmount          int64 `json:"cgstAmount"`
	SGSTAmount          int64 `json:"sgstAmount"`
	IGSTAmount          int64 `json:"igstAmount"`
	CessAmount          int64 `json:"cessAmount"`
	ITCClaimed          int64 `json:"itcClaimed"`
}

type ITRFiling struct {
	ID              string
	UserID          string
	PAN             string
	AssessmentYear  string
	Form            ITRFormData
	Status          filing.Status
	AckNumber       *string
	FiledAt         *time.Time
	Remarks         *string
	RejectionReason *string
	ReviewerID      *string
	RefundAmount    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type GSTFiling struct {
	ID              string
	UserID          string
	GSTIN           string
	ReturnType      string
	Period          string
	Form            GSTFormData
	Status          filing.Status
	AckNumber       *string
	FiledAt         *time.Time
	Remarks         *string
	RejectionReason *string
	ReviewerID      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Document struct {
	ID              string
	UserID          string
	FilingKind      *string
	FilingID        *string
	StoredName      string
	OriginalName    string
	MimeType        string
	SizeBytes       int64
	StorageKey      string
	DocType         string
	FinancialYear   *string
	Status          string
	RejectionReason *string
	VerifiedAt      *time.Time
	VerifiedBy      *string
	CreatedAt       time.Time
}

const (
	DocumentStatusUploaded   = "UPLOADED"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusVerified   = "VERIFIED"
	DocumentStatusRejected   = "REJECTED"
)

type Ticket struct {
	ID        string
	UserID    string
	Subject   string
	Priority  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TicketMessage struct {
	ID        string
	TicketID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

type Payment struct {
	ID          string
	UserID      string
	FilingKind  *string
	FilingID    *string
	Amount      int64
	Currency    string
	Purpose     string
	Status      string
	ProviderRef *string
	CreatedAt   time.Time
}

const (
	PaymentStatusCreated   = "CREATED"
	PaymentStatusSucceeded = "SUCCEEDED"
	PaymentStatusFailed    = "FAILED"
)
