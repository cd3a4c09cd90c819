package dto

import (
	"kbchat-be/internal/entity"
)

type UploadDocsResponse struct {
	Message string                `json:"message"`
	Results []entity.UploadResult `json:"results"`
}

type UploadSingleResponse struct {
	Message string              `json:"message"`
	Result  entity.UploadResult `json:"result"`
}

type UploadURLRequest struct {
	URL      string                 `json:"url" validate:"required,url"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type UploadURLResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []entity.DocumentSummary `json:"documents"`
}
