package entity

type UploadStatus string

const (
	UploadStatusSuccess UploadStatus = "success"
	UploadStatusFailure UploadStatus = "failure"
)

// UploadResult reports the outcome of forwarding one file to the knowledge base.
type UploadResult struct {
	FileName   string       `json:"file_name"`
	Status     UploadStatus `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	DocumentID string       `json:"document_id,omitempty"`
}

func (r UploadResult) Succeeded() bool {
	return r.Status == UploadStatusSuccess
}

// IngestReceipt is what the knowledge base answers to an accepted document.
type IngestReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type DocumentStatus struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Title    string  `json:"title"`
	Progress float64 `json:"progress"`
}

type DocumentSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}
