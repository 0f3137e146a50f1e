// Package dto holds the JSON request and response bodies of the HTTP API.
package dto

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type URLResponse struct {
	URL string `json:"url"`
}
