package dto

import "time"

// CreditBalanceResponse is the caller's current credit balance
type CreditBalanceResponse struct {
	CustomerID uint       `json:"customer_id"`
	Balance    uint64     `json:"balance"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}
