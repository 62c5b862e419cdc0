package clients

import "time"

// Client is the customer a quotation is addressed to.
type Client struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	TaxID     *string   `json:"tax_id,omitempty" db:"tax_id"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Input carries inline client data supplied with a quotation.
type Input struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	TaxID *string `json:"tax_id,omitempty" validate:"omitempty,max=50"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=50"`
}
