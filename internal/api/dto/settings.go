package dto

import "encoding/json"

type PutSettingRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}
