package domain

import "errors"

var (
	ErrInvalidRecipient       = errors.New("invalid_recipient")
	ErrInvalidSubject         = errors.New("invalid_subject")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidMaxRetries      = errors.New("invalid_max_retries")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrNotFound               = errors.New("not_found")
	ErrUnknownAttachment      = errors.New("unknown_attachment_kind")
)
