package supermemory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat-be/internal/pkg/apperror"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "sm-key", "", 2*time.Second)
	c.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestSearchFlattensSortsAndCaps(t *testing.T) {
	var got searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/search", r.URL.Path)
		assert.Equal(t, "Bearer sm-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"results":[
			{"documentId":"d1","title":"Returns","score":0.9,"chunks":[
				{"content":"  Returns accepted within 30 days. ","score":0.8},
				{"content":"   ","score":0.99}
			]},
			{"documentId":"d2","title":"","score":0.5,"chunks":[
				{"content":"Shipping is free.","score":0.95},
				{"content":"Exchanges allowed.","score":0.3}
			]}
		],"total":2}`)
	})

	chunks, err := c.Search(context.Background(), "What is the return policy?", 2)

	require.NoError(t, err)
	assert.Equal(t, "What is the return policy?", got.Q)
	assert.Equal(t, 2, got.Limit)
	assert.Empty(t, got.ContainerTags)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Shipping is free.", chunks[0].Text)
	assert.Equal(t, "d2", chunks[0].SourceTag)
	assert.Equal(t, "Returns accepted within 30 days.", chunks[1].Text)
	assert.Equal(t, "Returns", chunks[1].SourceTag)
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[],"total":0}`)
	})

	chunks, err := c.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestSearchScopedByTag(t *testing.T) {
	var got searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"results":[]}`)
	})
	c.SearchTag = "handbook"

	_, err := c.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"handbook"}, got.ContainerTags)
}

func TestSearchErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		kind   apperror.Kind
	}{
		{http.StatusUnauthorized, apperror.KindRetrievalAuth},
		{http.StatusForbidden, apperror.KindRetrievalAuth},
		{http.StatusInternalServerError, apperror.KindRetrievalUnavailable},
		{http.StatusBadRequest, apperror.KindRetrievalUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.Search(context.Background(), "q", 5)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := NewClient(srv.URL, "k", "", time.Second)
	srv.Close()

	_, err := c.Search(context.Background(), "q", 5)
	assert.Equal(t, apperror.KindRetrievalUnavailable, apperror.KindOf(err))
}

func TestUploadFileMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/memories/file", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, `["brittannia","policy"]`, r.FormValue("containerTags"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "policy.pdf", hdr.Filename)
		assert.Equal(t, "pdf-bytes", string(data))

		fmt.Fprint(w, `{"id":"mem_1","status":"queued"}`)
	})

	receipt, err := c.UploadFile(context.Background(), "policy.pdf", []byte("pdf-bytes"), []string{"brittannia", "policy"})
	require.NoError(t, err)
	assert.Equal(t, "mem_1", receipt.ID)
	assert.Equal(t, "queued", receipt.Status)
}

func TestUploadFileRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported file type", http.StatusUnprocessableEntity)
	})

	_, err := c.UploadFile(context.Background(), "x.bin", []byte{1}, nil)
	require.Error(t, err)
	assert.Equal(t, apperror.KindIngestion, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestAddURLMetadata(t *testing.T) {
	var got addRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/memories", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"id":"mem_2","status":"queued"}`)
	})

	receipt, err := c.AddURL(context.Background(), "https://example.com/faq", "brittannia", map[string]any{"source": "web"})
	require.NoError(t, err)
	assert.Equal(t, "mem_2", receipt.ID)
	assert.Equal(t, "https://example.com/faq", got.Content)
	assert.Equal(t, "brittannia", got.ContainerTag)
	assert.Equal(t, "url", got.Metadata["type"])
	assert.Equal(t, "https://example.com/faq", got.Metadata["originalUrl"])
	assert.Equal(t, "2025-01-02T03:04:05Z", got.Metadata["uploadedAt"])
	assert.Equal(t, "web", got.Metadata["source"])
}

func TestGetDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/v3/memories/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "/v3/memories/mem_1", r.URL.Path)
		fmt.Fprint(w, `{"id":"mem_1","status":"done","title":"Policy","metadata":{"progress":100}}`)
	})

	doc, err := c.GetDocument(context.Background(), "mem_1")
	require.NoError(t, err)
	assert.Equal(t, "done", doc.Status)
	assert.Equal(t, "Policy", doc.Title)
	assert.InDelta(t, 100.0, doc.Progress, 1e-9)

	_, err = c.GetDocument(context.Background(), "missing")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestListDocumentsFallbacks(t *testing.T) {
	var got listRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/memories/list", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"memories":[
			{"id":"a","status":"done","title":"Handbook","metadata":{"fileType":"pdf","uploadedAt":"2025-01-01"}},
			{"id":"b","status":"queued","title":"","metadata":{"originalName":"faq.md","type":"url","originalUrl":"https://x"}},
			{"id":"c","status":"failed","title":"","metadata":null}
		]}`)
	})

	docs, err := c.ListDocuments(context.Background(), "brittannia")
	require.NoError(t, err)
	assert.Equal(t, []string{"brittannia"}, got.ContainerTags)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, "updatedAt", got.Sort)
	assert.Equal(t, "desc", got.Order)

	require.Len(t, docs, 3)
	assert.Equal(t, "Handbook", docs[0].Title)
	assert.Equal(t, "pdf", docs[0].Type)
	assert.Equal(t, "2025-01-01", docs[0].UploadedAt)
	assert.Equal(t, "faq.md", docs[1].Title)
	assert.Equal(t, "url", docs[1].Type)
	assert.Equal(t, "https://x", docs[1].URL)
	assert.Equal(t, "Untitled", docs[2].Title)
	assert.Equal(t, "unknown", docs[2].Type)
}
