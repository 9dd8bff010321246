package businessflow

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	"github.com/matbaogit/WFAHub-sub000/config"
	"github.com/sirupsen/logrus"
)

const previewSampleRows = 5

// RecipientImportFlow parses uploaded recipient lists and caches them for mapping
type RecipientImportFlow interface {
	PreviewUpload(ctx context.Context, req *dto.UploadRecipientsRequest, metadata *ClientMetadata) (*dto.UploadRecipientsResponse, error)
}

// RecipientImportFlowImpl implements the recipient import flow
type RecipientImportFlowImpl struct {
	uploads  services.UploadCache
	maxRows  int
	maxBytes int64
	logger   logrus.FieldLogger
}

// NewRecipientImportFlow creates a new recipient import flow instance
func NewRecipientImportFlow(uploads services.UploadCache, cfg config.DispatchConfig, logger logrus.FieldLogger) RecipientImportFlow {
	return &RecipientImportFlowImpl{
		uploads:  uploads,
		maxRows:  cfg.MaxUploadRows,
		maxBytes: int64(cfg.MaxUploadBytes),
		logger:   logger,
	}
}

// PreviewUpload parses the file, caches the rows under a fresh token and returns what the author needs to pick a mapping
func (f *RecipientImportFlowImpl) PreviewUpload(ctx context.Context, req *dto.UploadRecipientsRequest, metadata *ClientMetadata) (*dto.UploadRecipientsResponse, error) {
	if req.Content == nil || req.FileName == "" {
		return nil, NewBusinessError("UPLOAD_REQUIRED", "Upload file is required", ErrUploadRequired)
	}
	if f.maxBytes > 0 && req.Size > f.maxBytes {
		return nil, NewBusinessError("UPLOAD_TOO_LARGE", "Uploaded file is too large", ErrUploadTooLarge)
	}

	reader := req.Content
	if f.maxBytes > 0 {
		reader = io.LimitReader(req.Content, f.maxBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewBusinessError("UPLOAD_READ_FAILED", "Failed to read uploaded file", err)
	}
	if f.maxBytes > 0 && int64(len(raw)) > f.maxBytes {
		return nil, NewBusinessError("UPLOAD_TOO_LARGE", "Uploaded file is too large", ErrUploadTooLarge)
	}

	table, err := mailmerge.ParseUpload(req.FileName, bytes.NewReader(raw), f.maxRows)
	if err != nil {
		return nil, mapParseError(err)
	}

	upload, err := f.uploads.Put(ctx, req.CustomerID, req.FileName, table)
	if err != nil {
		return nil, NewBusinessError("UPLOAD_CACHE_FAILED", "Failed to store upload", err)
	}

	suggested := mailmerge.SuggestMapping(table.Columns)
	sample := table.Rows
	if len(sample) > previewSampleRows {
		sample = sample[:previewSampleRows]
	}

	f.logger.WithFields(logrus.Fields{
		"customer_id": req.CustomerID,
		"file_name":   req.FileName,
		"rows":        len(table.Rows),
		"columns":     len(table.Columns),
	}).Info("recipient upload parsed")

	return &dto.UploadRecipientsResponse{
		Message:          "Upload parsed successfully",
		UploadToken:      upload.Token,
		FileName:         req.FileName,
		Columns:          table.Columns,
		CanonicalKeys:    mailmerge.CanonicalKeys(table.Columns),
		SuggestedMapping: suggested,
		SampleRows:       sample,
		RowCount:         len(table.Rows),
		ExpiresAt:        upload.ExpiresAt,
	}, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, mailmerge.ErrUnsupportedFormat):
		return NewBusinessError("UNSUPPORTED_FILE_FORMAT", "Unsupported file format", ErrUnsupportedFileFormat)
	case errors.Is(err, mailmerge.ErrEmptyTable), errors.Is(err, mailmerge.ErrNoDataRows):
		return NewBusinessError("UPLOAD_EMPTY", "Uploaded file has no data rows", ErrUploadEmpty)
	case errors.Is(err, mailmerge.ErrTooManyRows):
		return NewBusinessError("UPLOAD_TOO_MANY_ROWS", "Uploaded file exceeds the row limit", ErrUploadTooManyRows)
	default:
		return NewBusinessError("UPLOAD_PARSE_FAILED", "Failed to parse uploaded file", err)
	}
}
