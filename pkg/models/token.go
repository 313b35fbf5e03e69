package models

import "time"

// RawDataForm is the payload for minting an importer token
type RawDataForm struct {
	Username     string `json:"username" validate:"required,max=150"`
	CustomerName string `json:"customer_name" validate:"required,max=50"`
	TravelAgency string `json:"travel_agency" validate:"required,alpha,max=50"`
	Country      string `json:"country" validate:"required,uppercase,max=2"`
	Quarter      string `json:"quarter" validate:"required,alphanum,max=2"`
	Year         string `json:"year" validate:"required,numeric,max=4"`
	Domain       string `json:"domain,omitempty"`
	TravelType   string `json:"travel_type,omitempty"`
}

// TokenResponse carries a minted importer token and the launch parameters
type TokenResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Domain     string    `json:"domain"`
	TravelType string    `json:"travel_type"`
}
