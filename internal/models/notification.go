package models

import "encoding/json"

type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
	DeliveryStatusError   DeliveryStatus = "error"
)

// DeliveryOutcome is the result of one push attempt for one recipient.
type DeliveryOutcome struct {
	Receiver string          `json:"receiver"`
	Status   DeliveryStatus  `json:"status"`
	Skipped  bool            `json:"skipped,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

type DispatchResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Results []DeliveryOutcome `json:"results,omitempty"`
}
