package dto

type CheckoutSessionRequest struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	PriceID        string `json:"priceId" validate:"required"`
	SuccessURL     string `json:"successUrl" validate:"required,url"`
	CancelURL      string `json:"cancelUrl" validate:"required,url"`
}

type PortalSessionRequest struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	ReturnURL      string `json:"returnUrl" validate:"required,url"`
}
