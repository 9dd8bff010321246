package utils

import (
	"time"
)

// Request-scoped context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// Campaign dispatch constants
const (
	// MinSendRate is the lowest accepted send rate in emails per minute
	MinSendRate = 1

	// MaxSendRate caps the send rate so the inter-send delay never drops below 100ms
	MaxSendRate = 600

	// DefaultUploadTTL is how long a parsed upload stays available for mapping
	DefaultUploadTTL = 30 * time.Minute

	// CreditsPerEmail is the spend debited for each successfully sent email
	CreditsPerEmail = 1

	// MaxPageSize bounds list endpoints
	MaxPageSize = 100
)
