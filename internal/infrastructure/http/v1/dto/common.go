// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"docjournal/internal/core/numerator"
)

// IDResponse for create operations.
type IDResponse struct {
	ID int64 `json:"id"`
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse mirrors the body written by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NumberDTO is a ledger numeric with its printable form.
type NumberDTO struct {
	Numeric   int64      `json:"numeric"`
	Number    string     `json:"number"`
	IsGolden  bool       `json:"isGolden"`
	Status    string     `json:"status,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// FromNumerics formats bare numerics.
func FromNumerics(format numerator.Config, numerics []int64) []NumberDTO {
	out := make([]NumberDTO, len(numerics))
	for i, n := range numerics {
		out[i] = NumberDTO{
			Numeric:  n,
			Number:   format.Format(n),
			IsGolden: numerator.IsGolden(n),
		}
	}
	return out
}

// ttl converts an optional seconds field; zero means "use the default".
func ttl(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
