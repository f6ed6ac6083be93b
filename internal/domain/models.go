package domain

import (
	"time"

	"docuvault/internal/duedate"
)

type Client struct {
	ID            string
	OwnerID       string
	Name          string
	Email         string
	Active        bool
	PortalEnabled bool
	DueDay        int    // default due day-of-month, 1-31
	DueTimezone   string // IANA zone name
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DocumentRequest struct {
	ID           string
	ClientID     string
	Title        string
	Description  string
	Required     bool
	Active       bool
	SortOrder    int
	MaxFiles     int
	AllowedMIMEs []string // empty means any
	CreatedAt    time.Time
}

type RequestTemplate struct {
	ID             string
	ClientID       string
	Name           string
	Enabled        bool
	Frequency      string
	SilentAutoSend bool
	StartNextMonth bool
	DueDay         *int // nil falls back to the client default
	DocumentIDs    []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const FrequencyMonthly = "monthly"

type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionFinalized SessionStatus = "finalized"
	SessionExpired   SessionStatus = "expired"
)

type SentVia string

const (
	SentViaManual SentVia = "manual"
	SentViaAuto   SentVia = "auto"
)

type SubmissionSession struct {
	ID         string
	ClientID   string
	TemplateID string // empty for free-form sessions
	Status     SessionStatus
	Token      string
	SentVia    SentVia
	OpenedAt   time.Time
	DueOn      duedate.Date
	FinalizedAt *time.Time
	ExpiresAt   *time.Time

	Reminder14DSentAt          *time.Time
	AcceptedConfirmationSentAt *time.Time

	DocumentIDs []string
}

type UploadStatus string

const (
	UploadPending  UploadStatus = "pending"
	UploadAccepted UploadStatus = "accepted"
	UploadDenied   UploadStatus = "denied"
)

type Upload struct {
	ID            string
	SessionID     string
	DocumentID    string
	Filename      string
	StorageKey    string
	ContentType   string
	SizeBytes     int64
	Status        UploadStatus
	DenialReason  string
	UploadedAt    *time.Time
	ViewedAt      *time.Time
	ReviewedAt    *time.Time
	DeleteAfterAt *time.Time
	DeletedAt     *time.Time
	CreatedAt     time.Time
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

type OutboxEntry struct {
	ID             string
	Recipient      string
	Template       string
	Payload        []byte // JSON
	IdempotencyKey string
	RunAfter       time.Time
	Status         OutboxStatus
	AttemptCount   int
	LastError      string
	CreatedAt      time.Time
	SentAt         *time.Time
}
