package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"gorm.io/gorm"
)

type EnqueueRequest struct {
	Recipient      string
	Subject        string
	HTMLBody       string
	TextBody       string
	AttachmentKind string
	AttachmentRef  string
	Headers        map[string]any
	MaxRetries     int
}

type ListRequest struct {
	Status    string
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Jobs []EmailJob `json:"jobs"`
}

type RetryRequest struct {
	ID string
	// RaiseMaxRetriesTo lifts MaxRetries when larger than the current value.
	RaiseMaxRetriesTo *int
}

type RetryResult struct {
	Job     EmailJob `json:"job"`
	Warning string   `json:"warning,omitempty"`
}

type Service interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*EmailJob, error)
	// EnqueueTx joins tx so the job commits with the caller's writes.
	EnqueueTx(ctx context.Context, tx *gorm.DB, req EnqueueRequest) (*EmailJob, error)
	ClaimDue(ctx context.Context, limit int) ([]EmailJob, error)
	MarkSent(ctx context.Context, id snowflake.ID) (*EmailJob, error)
	MarkFailed(ctx context.Context, id snowflake.ID, message string) (*EmailJob, error)
	RetryManually(ctx context.Context, req RetryRequest) (*RetryResult, error)
	ReleaseStaleClaims(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (*EmailJob, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Stats(ctx context.Context) (Stats, error)
	Delete(ctx context.Context, id string) error
}

// Attachment is the rendered file behind a job's attachment descriptor.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AttachmentResolver renders the attachment named by AttachmentKind and
// AttachmentRef at send time.
type AttachmentResolver interface {
	Resolve(ctx context.Context, kind, ref string) (*Attachment, error)
}
