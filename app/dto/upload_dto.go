package dto

import (
	"io"
	"time"

	"github.com/matbaogit/WFAHub-sub000/models"
)

// UploadRecipientsRequest carries a CSV or XLSX file to preview
type UploadRecipientsRequest struct {
	CustomerID uint
	FileName   string
	Size       int64
	Content    io.Reader
}

// UploadRecipientsResponse is the preview shown before the author picks a mapping
type UploadRecipientsResponse struct {
	Message          string              `json:"message"`
	UploadToken      string              `json:"upload_token"`
	FileName         string              `json:"file_name"`
	Columns          []string            `json:"columns"`
	CanonicalKeys    []string            `json:"canonical_keys"`
	SuggestedMapping map[string]string   `json:"suggested_mapping"`
	SampleRows       []models.CustomData `json:"sample_rows"`
	RowCount         int                 `json:"row_count"`
	ExpiresAt        time.Time           `json:"expires_at"`
}
