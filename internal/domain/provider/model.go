package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider maps to the providers table.
type Provider struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Specialty   *string   `db:"specialty" json:"specialty,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
