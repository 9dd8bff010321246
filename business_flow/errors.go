// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Upload errors
	ErrUploadRequired        = errors.New("upload file is required")
	ErrUploadTooLarge        = errors.New("uploaded file is too large")
	ErrUploadExpired         = errors.New("upload not found or expired")
	ErrUnsupportedFileFormat = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrUploadEmpty           = errors.New("uploaded file has no data rows")
	ErrUploadTooManyRows     = errors.New("uploaded file exceeds the row limit")

	// Mapping errors
	ErrEmailMappingRequired = errors.New("email column mapping is required")
	ErrUnknownMappedColumn  = errors.New("mapped column does not exist in the upload")
	ErrNoRecipients         = errors.New("campaign has no recipients")

	// Campaign errors
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignUUIDRequired   = errors.New("campaign UUID is required")
	ErrCampaignNameRequired   = errors.New("campaign name is required")
	ErrSubjectRequired        = errors.New("subject template is required")
	ErrBodyRequired           = errors.New("body template is required")
	ErrInvalidSendRate        = errors.New("send rate must be between 1 and 600 emails per minute")
	ErrInvalidScheduleMode    = errors.New("invalid schedule mode")
	ErrScheduledAtRequired    = errors.New("scheduled time is required for fixed-time campaigns")
	ErrDateColumnRequired     = errors.New("date column is required for per-recipient-date campaigns")
	ErrInvalidDefaultSendTime = errors.New("default send time must be HH:MM or HH:MM:SS")
	ErrCampaignNotEditable    = errors.New("campaign can only be changed while draft")
	ErrCampaignNotStartable   = errors.New("campaign is already sending or finished")
	ErrCampaignUpdateRequired = errors.New("at least one field must be provided for update")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrInvalidRecipientStatus = errors.New("invalid recipient status filter")
	ErrDispatchUnavailable    = errors.New("dispatch queue unavailable")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsUploadRequired(err error) bool {
	return errors.Is(err, ErrUploadRequired)
}

func IsUploadTooLarge(err error) bool {
	return errors.Is(err, ErrUploadTooLarge)
}

func IsUploadExpired(err error) bool {
	return errors.Is(err, ErrUploadExpired)
}

func IsUnsupportedFileFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFileFormat)
}

func IsUploadEmpty(err error) bool {
	return errors.Is(err, ErrUploadEmpty)
}

func IsUploadTooManyRows(err error) bool {
	return errors.Is(err, ErrUploadTooManyRows)
}

func IsEmailMappingRequired(err error) bool {
	return errors.Is(err, ErrEmailMappingRequired)
}

func IsUnknownMappedColumn(err error) bool {
	return errors.Is(err, ErrUnknownMappedColumn)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsRecipientNotFound(err error) bool {
	return errors.Is(err, ErrRecipientNotFound)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsCampaignNotStartable(err error) bool {
	return errors.Is(err, ErrCampaignNotStartable)
}

func IsDispatchUnavailable(err error) bool {
	return errors.Is(err, ErrDispatchUnavailable)
}

// IsValidationError reports errors caused by the request content
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCampaignUUIDRequired,
		ErrCampaignNameRequired,
		ErrSubjectRequired,
		ErrBodyRequired,
		ErrInvalidSendRate,
		ErrInvalidScheduleMode,
		ErrScheduledAtRequired,
		ErrDateColumnRequired,
		ErrInvalidDefaultSendTime,
		ErrCampaignUpdateRequired,
		ErrInvalidRecipientStatus,
		ErrEmailMappingRequired,
		ErrUnknownMappedColumn,
		ErrNoRecipients,
		ErrUploadRequired,
		ErrUnsupportedFileFormat,
		ErrUploadEmpty,
		ErrUploadTooManyRows,
		ErrInvalidPage,
		ErrInvalidPageSize,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
