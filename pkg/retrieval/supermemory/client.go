package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/pkg/retrieval"
)

const (
	DefaultBaseURL = "https://api.supermemory.ai"
	listPageSize   = 50
)

type Client struct {
	BaseURL    string
	APIKey     string
	SearchTag  string // optional container tag scoping every search
	HTTPClient *http.Client
	now        func() time.Time
}

var (
	_ retrieval.Retriever = &Client{}
	_ retrieval.Ingestor  = &Client{}
)

func NewClient(baseURL, apiKey, searchTag string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		SearchTag:  searchTag,
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// --- Wire types ---

type searchRequest struct {
	Q             string   `json:"q"`
	Limit         int      `json:"limit"`
	ContainerTags []string `json:"containerTags,omitempty"`
}

type searchChunk struct {
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	IsRelevant bool    `json:"isRelevant"`
}

type searchResult struct {
	DocumentID string        `json:"documentId"`
	Title      string        `json:"title"`
	Score      float64       `json:"score"`
	Chunks     []searchChunk `json:"chunks"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Total   int            `json:"total"`
}

type memoryResponse struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type addRequest struct {
	Content      string         `json:"content"`
	ContainerTag string         `json:"containerTag,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type listRequest struct {
	ContainerTags []string `json:"containerTags,omitempty"`
	Limit         int      `json:"limit"`
	Sort          string   `json:"sort"`
	Order         string   `json:"order"`
}

type listResponse struct {
	Memories []memoryResponse `json:"memories"`
}

// --- Retriever ---

func (c *Client) Search(ctx context.Context, query string, limit int) ([]entity.RetrievedChunk, error) {
	req := searchRequest{Q: query, Limit: limit}
	if c.SearchTag != "" {
		req.ContainerTags = []string{c.SearchTag}
	}

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/search", req, &resp); err != nil {
		return nil, classifySearch(err)
	}

	chunks := make([]entity.RetrievedChunk, 0)
	for _, result := range resp.Results {
		tag := result.Title
		if tag == "" {
			tag = result.DocumentID
		}
		for _, ch := range result.Chunks {
			text := strings.TrimSpace(ch.Content)
			if text == "" {
				continue
			}
			score := ch.Score
			if score == 0 {
				score = result.Score
			}
			chunks = append(chunks, entity.RetrievedChunk{Text: text, Score: score, SourceTag: tag})
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// --- Ingestor ---

func (c *Client) UploadFile(ctx context.Context, fileName string, data []byte, tags []string) (*entity.IngestReceipt, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(data); err != nil {
		return nil, errors.Wrap(err, "write form file")
	}
	if len(tags) > 0 {
		encoded, err := json.Marshal(tags)
		if err != nil {
			return nil, errors.Wrap(err, "encode container tags")
		}
		if err := w.WriteField("containerTags", string(encoded)); err != nil {
			return nil, errors.Wrap(err, "write container tags")
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v3/memories/file", &body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp memoryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, ingestionError(err, "upload "+fileName)
	}
	return &entity.IngestReceipt{ID: resp.ID, Status: resp.Status}, nil
}

func (c *Client) AddURL(ctx context.Context, rawURL, tag string, metadata map[string]any) (*entity.IngestReceipt, error) {
	meta := map[string]any{
		"type":        "url",
		"originalUrl": rawURL,
		"uploadedAt":  c.now().Format(time.RFC3339),
	}
	for k, v := range metadata {
		meta[k] = v
	}

	var resp memoryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/memories", addRequest{Content: rawURL, ContainerTag: tag, Metadata: meta}, &resp); err != nil {
		return nil, ingestionError(err, "add url")
	}
	return &entity.IngestReceipt{ID: resp.ID, Status: resp.Status}, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*entity.DocumentStatus, error) {
	var resp memoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v3/memories/"+url.PathEscape(id), nil, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, apperror.Newf(apperror.KindNotFound, "document %s not found", id)
		}
		return nil, ingestionError(err, "get document")
	}

	progress, _ := resp.Metadata["progress"].(float64)
	return &entity.DocumentStatus{
		ID:       resp.ID,
		Status:   resp.Status,
		Title:    resp.Title,
		Progress: progress,
	}, nil
}

func (c *Client) ListDocuments(ctx context.Context, tag string) ([]entity.DocumentSummary, error) {
	req := listRequest{Limit: listPageSize, Sort: "updatedAt", Order: "desc"}
	if tag != "" {
		req.ContainerTags = []string{tag}
	}

	var resp listResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/memories/list", req, &resp); err != nil {
		return nil, ingestionError(err, "list documents")
	}

	docs := make([]entity.DocumentSummary, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		docs = append(docs, entity.DocumentSummary{
			ID:         m.ID,
			Title:      firstNonEmpty(m.Title, metaString(m.Metadata, "originalName"), "Untitled"),
			Type:       firstNonEmpty(metaString(m.Metadata, "fileType"), metaString(m.Metadata, "type"), "unknown"),
			Status:     m.Status,
			URL:        metaString(m.Metadata, "originalUrl"),
			UploadedAt: metaString(m.Metadata, "uploadedAt"),
		})
	}
	return docs, nil
}

// --- Transport ---

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supermemory status %d: %s", e.code, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func classifySearch(err error) error {
	var se *statusError
	if errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden) {
		return apperror.Wrap(apperror.KindRetrievalAuth, err, "knowledge base rejected credentials")
	}
	return apperror.Wrap(apperror.KindRetrievalUnavailable, err, "knowledge base search failed")
}

func ingestionError(err error, op string) error {
	return apperror.Wrap(apperror.KindIngestion, err, op+" failed")
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
