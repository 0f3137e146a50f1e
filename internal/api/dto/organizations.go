package dto

type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type InviteMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin editor viewer"`
}

type UpdateMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=admin editor viewer"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
