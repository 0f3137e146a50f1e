package dto

type CreatePipelineRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type UpdatePipelineRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
}

type CreateStageRequest struct {
	PipelineID string `json:"pipelineId" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=100"`
	Order      *int   `json:"order" validate:"omitempty,gte=0"`
}

type UpdateStageRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Order *int    `json:"order" validate:"omitempty,gte=0"`
}

type StageOrderItem struct {
	ID    string `json:"id" validate:"required,uuid"`
	Order *int   `json:"order" validate:"required,gte=0"`
}

type ReorderStagesRequest struct {
	StageOrders []StageOrderItem `json:"stageOrders" validate:"required,min=1,dive"`
}

type CreateLeadRequest struct {
	StageID string  `json:"stageId" validate:"required,uuid"`
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email" validate:"omitempty,max=254"`
	Source  *string `json:"source" validate:"omitempty,max=100"`
	Notes   *string `json:"notes" validate:"omitempty,max=5000"`
}

type UpdateLeadRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email  *string `json:"email" validate:"omitempty,max=254"`
	Source *string `json:"source" validate:"omitempty,max=100"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

type MoveLeadRequest struct {
	StageID string `json:"stageId" validate:"required,uuid"`
}

type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}
