package dto

// AirtableTestRequest fields fall back to the organization's stored
// settings when empty.
type AirtableTestRequest struct {
	APIKey string `json:"apiKey"`
	BaseID string `json:"baseId"`
}

type AirtableSyncRequest struct {
	APIKey    string `json:"apiKey"`
	BaseID    string `json:"baseId"`
	Direction string `json:"direction" validate:"omitempty,oneof=pull push"`
}
