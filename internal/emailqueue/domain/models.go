package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

const (
	DefaultMaxRetries = 3
	// MaxRetriesLimit bounds MaxRetries on enqueue and manual retry.
	MaxRetriesLimit = 10
	// MaxBackoff caps the retry delay.
	MaxBackoff = 24 * time.Hour
	// AttachmentDocumentPDF resolves AttachmentRef to a rendered document PDF.
	AttachmentDocumentPDF = "document_pdf"
)

// EmailJob is one outbound email. PENDING jobs are picked up by the worker
// once NextRetryAt has passed; SENT and FAILED are terminal until an
// operator retries a FAILED job.
type EmailJob struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Recipient      string            `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject        string            `gorm:"type:varchar(500);not null" json:"subject"`
	HTMLBody       string            `gorm:"column:html_body;type:text;not null" json:"-"`
	TextBody       string            `gorm:"column:text_body;type:text;not null" json:"-"`
	AttachmentKind string            `gorm:"type:varchar(32)" json:"attachment_kind,omitempty"`
	AttachmentRef  string            `gorm:"type:varchar(64)" json:"attachment_ref,omitempty"`
	Headers        datatypes.JSONMap `gorm:"type:json" json:"headers,omitempty"`
	Status         Status            `gorm:"type:varchar(16);not null;index:ix_email_jobs_due,priority:1" json:"status"`
	RetryCount     int               `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries     int               `gorm:"not null;default:3" json:"max_retries"`
	LastError      string            `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt    *time.Time        `gorm:"index:ix_email_jobs_due,priority:2" json:"next_retry_at,omitempty"`
	ClaimToken     *string           `gorm:"type:varchar(64);index" json:"-"`
	ClaimedAt      *time.Time        `json:"claimed_at,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`
}

func (EmailJob) TableName() string { return "email_jobs" }

// Backoff returns the delay before the retryCount-th retry: 5m, 15m, 45m...
// capped at MaxBackoff.
func Backoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := 5 * time.Minute
	for i := 1; i < retryCount; i++ {
		delay *= 3
		if delay >= MaxBackoff {
			return MaxBackoff
		}
	}
	return delay
}

type Stats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}
