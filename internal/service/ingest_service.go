package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/pkg/events"
	"kbchat-be/pkg/filewatcher"
	"kbchat-be/pkg/retrieval"
)

const ingestModule = "INGEST"

// watchDebounce lets editors finish writing before a changed file is uploaded.
const watchDebounce = 750 * time.Millisecond

// IIngestService forwards documents to the knowledge base.
type IIngestService interface {
	UploadFolder(ctx context.Context, path string) ([]entity.UploadResult, error)
	UploadOne(ctx context.Context, data []byte, fileName string) (entity.UploadResult, error)
	AddURL(ctx context.Context, url string, metadata map[string]interface{}) (*entity.IngestReceipt, error)
	DocumentStatus(ctx context.Context, id string) (*entity.DocumentStatus, error)
	ListDocuments(ctx context.Context, tag string) ([]entity.DocumentSummary, error)
	// Watch uploads files created or modified under path until ctx is done.
	Watch(ctx context.Context, path string, onResult func(entity.UploadResult)) error
}

type ingestService struct {
	ingestor     retrieval.Ingestor
	containerTag string
	publisher    IPublisherService
	logger       logger.ILogger
}

func NewIngestService(ingestor retrieval.Ingestor, containerTag string, publisher IPublisherService, log logger.ILogger) IIngestService {
	if publisher == nil {
		publisher = NewNopPublisherService()
	}
	return &ingestService{
		ingestor:     ingestor,
		containerTag: containerTag,
		publisher:    publisher,
		logger:       log,
	}
}

// UploadFolder uploads the regular files of path one by one, in name order.
// A failing file becomes a failure result; the batch always runs to the end.
func (s *ingestService) UploadFolder(ctx context.Context, path string) ([]entity.UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.Newf(apperror.KindNotFound, "docs folder not found: %s", path)
		}
		return nil, apperror.Wrap(apperror.KindInvalidInput, err, "cannot read docs folder")
	}
	if !info.IsDir() {
		return nil, apperror.Newf(apperror.KindInvalidInput, "%s is not a folder", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidInput, err, "cannot list docs folder")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	results := make([]entity.UploadResult, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		results = append(results, s.uploadPath(ctx, filepath.Join(path, entry.Name())))
	}

	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	s.logger.Info(ingestModule, "Folder upload finished", map[string]interface{}{
		"path":   path,
		"files":  len(results),
		"failed": failed,
	})
	return results, nil
}

func (s *ingestService) UploadOne(ctx context.Context, data []byte, fileName string) (entity.UploadResult, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return entity.UploadResult{}, apperror.New(apperror.KindInvalidInput, "file name is required")
	}
	if len(data) == 0 {
		return entity.UploadResult{}, apperror.New(apperror.KindInvalidInput, "file is empty")
	}

	return s.upload(ctx, fileName, data)
}

func (s *ingestService) AddURL(ctx context.Context, url string, metadata map[string]interface{}) (*entity.IngestReceipt, error) {
	if strings.TrimSpace(url) == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "url is required")
	}

	receipt, err := s.ingestor.AddURL(ctx, url, s.containerTag, metadata)
	if err != nil {
		s.logger.Error(ingestModule, "URL ingestion failed", map[string]interface{}{"url": url, "error": err.Error()})
		s.emit(ctx, events.New(events.TypeIngestionFailed, map[string]interface{}{"url": url, "error": err.Error()}))
		return nil, err
	}

	s.emit(ctx, events.New(events.TypeDocumentIngested, map[string]interface{}{"url": url, "document_id": receipt.ID}))
	return receipt, nil
}

func (s *ingestService) DocumentStatus(ctx context.Context, id string) (*entity.DocumentStatus, error) {
	if id == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "document id is required")
	}
	return s.ingestor.GetDocument(ctx, id)
}

func (s *ingestService) ListDocuments(ctx context.Context, tag string) ([]entity.DocumentSummary, error) {
	if tag == "" {
		tag = s.containerTag
	}
	return s.ingestor.ListDocuments(ctx, tag)
}

func (s *ingestService) Watch(ctx context.Context, path string, onResult func(entity.UploadResult)) error {
	w, err := filewatcher.NewWatcher(nil, watchDebounce)
	if err != nil {
		return err
	}
	defer w.Stop()

	changes, errs, err := w.Watch(ctx, path)
	if err != nil {
		return apperror.Wrap(apperror.KindInvalidInput, err, "cannot watch "+path)
	}

	s.logger.Info(ingestModule, "Watching folder", map[string]interface{}{"path": path})
	for {
		select {
		case ev, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			result := s.uploadPath(ctx, ev.Path)
			if onResult != nil {
				onResult(result)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn(ingestModule, "Watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *ingestService) uploadPath(ctx context.Context, path string) entity.UploadResult {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn(ingestModule, "Cannot read file", map[string]interface{}{"file": name, "error": err.Error()})
		return entity.UploadResult{FileName: name, Status: entity.UploadStatusFailure, Detail: err.Error()}
	}
	result, _ := s.upload(ctx, name, data)
	return result
}

func (s *ingestService) upload(ctx context.Context, fileName string, data []byte) (entity.UploadResult, error) {
	tags := []string{s.containerTag, SecondaryTag(fileName)}

	receipt, err := s.ingestor.UploadFile(ctx, fileName, data, tags)
	if err != nil {
		if apperror.KindOf(err) == "" {
			err = apperror.Wrap(apperror.KindIngestion, err, "upload "+fileName+" failed")
		}
		s.logger.Error(ingestModule, "File upload failed", map[string]interface{}{"file": fileName, "error": err.Error()})
		s.emit(ctx, events.New(events.TypeIngestionFailed, map[string]interface{}{"file": fileName, "error": err.Error()}))
		return entity.UploadResult{FileName: fileName, Status: entity.UploadStatusFailure, Detail: err.Error()}, err
	}

	s.logger.Info(ingestModule, "File uploaded", map[string]interface{}{"file": fileName, "document_id": receipt.ID})
	s.emit(ctx, events.New(events.TypeDocumentIngested, map[string]interface{}{"file": fileName, "document_id": receipt.ID}))
	return entity.UploadResult{
		FileName:   fileName,
		Status:     entity.UploadStatusSuccess,
		Detail:     receipt.Status,
		DocumentID: receipt.ID,
	}, nil
}

func (s *ingestService) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn(ingestModule, "Failed to publish event", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

// SecondaryTag is the file name without its extension.
// A dotfile such as ".env" keeps its whole name.
func SecondaryTag(fileName string) string {
	base := filepath.Base(fileName)
	if tag := strings.TrimSuffix(base, filepath.Ext(base)); tag != "" {
		return tag
	}
	return base
}
