// Package retrieval declares what the chat and upload flows need from a hosted
// knowledge base. Implementations live in sub-packages.
package retrieval

import (
	"context"

	"kbchat-be/internal/entity"
)

type Retriever interface {
	// Search returns at most limit chunks ordered by descending score.
	// No matches is an empty slice and a nil error.
	Search(ctx context.Context, query string, limit int) ([]entity.RetrievedChunk, error)
}

type Ingestor interface {
	UploadFile(ctx context.Context, fileName string, data []byte, tags []string) (*entity.IngestReceipt, error)
	AddURL(ctx context.Context, url, tag string, metadata map[string]any) (*entity.IngestReceipt, error)
	GetDocument(ctx context.Context, id string) (*entity.DocumentStatus, error)
	ListDocuments(ctx context.Context, tag string) ([]entity.DocumentSummary, error)
}
