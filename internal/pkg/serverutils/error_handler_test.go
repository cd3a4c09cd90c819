package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/logger"
)

func TestStatusFor(t *testing.T) {
	tests := map[apperror.Kind]int{
		apperror.KindInvalidInput:          400,
		apperror.KindRetrievalAuth:         401,
		apperror.KindGenerationAuth:        401,
		apperror.KindRetrievalUnavailable:  503,
		apperror.KindGenerationUnavailable: 503,
		apperror.KindIngestion:             502,
		apperror.KindNotFound:              404,
		apperror.Kind("SOMETHING_ELSE"):    500,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusFor(kind), "StatusFor(%s)", kind)
	}
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.NewNopLogger())})
	app.Get("/retrieval", func(c *fiber.Ctx) error {
		return apperror.Wrap(apperror.KindRetrievalUnavailable, errors.New("dial tcp"), "knowledge base search failed")
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("secret internals")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/retrieval", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	var body BaseResponse[any]
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.False(t, body.Success)
	assert.Equal(t, 503, body.Code)
	assert.Equal(t, "RETRIEVAL_UNAVAILABLE", body.ErrorType)
	assert.Contains(t, body.Message, "knowledge base search failed")

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	raw, _ = io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "secret internals")

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

type sampleRequest struct {
	Message string `json:"message" validate:"required"`
	URL     string `json:"url" validate:"omitempty,url"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Message: "hi"}))

	err := ValidateRequest(sampleRequest{URL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "message is required")
	assert.Contains(t, err.Error(), "url must be a valid URL")
}
