package domain

import "time"

type BillingAddress struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zip_code" validate:"required"`
	Country   string `json:"country" validate:"required,oneof=India USA UK Canada"`
}

type Order struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Items     []CartLineItem `json:"items"`
	Totals    Totals         `json:"totals"`
	Billing   BillingAddress `json:"billing"`
	CardLast4 string         `json:"card_last4"`
	PlacedAt  time.Time      `json:"placed_at"`
}
