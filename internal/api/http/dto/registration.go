package dto

import "time"

type RegisterRequest struct {
	Hostname  string     `json:"hostname"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type RegistrationResponse struct {
	Result          string    `json:"result"`
	Hostname        string    `json:"hostname"`
	SourceAddress   string    `json:"source_address"`
	PreviousAddress string    `json:"previous_address,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Field           string    `json:"field,omitempty"`
	DecidedAt       time.Time `json:"decided_at"`
}
