package controller

import (
	"fmt"
	"io"

	"kbchat-be/internal/constant"
	"kbchat-be/internal/dto"
	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/serverutils"
	"kbchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	UploadDocs(ctx *fiber.Ctx) error
	UploadSingle(ctx *fiber.Ctx) error
	UploadURL(ctx *fiber.Ctx) error
	ListDocuments(ctx *fiber.Ctx) error
	GetDocument(ctx *fiber.Ctx) error
}

type documentController struct {
	service  service.IIngestService
	docsPath string
}

func NewDocumentController(service service.IIngestService, docsPath string) IDocumentController {
	return &documentController{service: service, docsPath: docsPath}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/upload-docs", c.UploadDocs)
	r.Post("/upload-single", c.UploadSingle)
	r.Post("/upload-url", c.UploadURL)
	r.Get("/documents", c.ListDocuments)
	r.Get("/documents/:id", c.GetDocument)
}

// UploadDocs forwards the configured docs folder. Per-file failures are
// reported in the results; the request itself still succeeds.
func (c *documentController) UploadDocs(ctx *fiber.Ctx) error {
	results, err := c.service.UploadFolder(ctx.UserContext(), c.docsPath)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.UploadDocsResponse{
		Message: fmt.Sprintf(constant.UploadDocsMessageFormat, len(results)),
		Results: results,
	})
}

func (c *documentController) UploadSingle(ctx *fiber.Ctx) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return apperror.New(apperror.KindInvalidInput, "no file provided")
	}

	f, err := fh.Open()
	if err != nil {
		return apperror.Wrap(apperror.KindInvalidInput, err, "cannot open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return apperror.Wrap(apperror.KindInvalidInput, err, "cannot read uploaded file")
	}

	result, err := c.service.UploadOne(ctx.UserContext(), data, fh.Filename)
	if err != nil {
		if apperror.Is(err, apperror.KindIngestion) {
			return ctx.Status(fiber.StatusBadGateway).JSON(dto.UploadSingleResponse{
				Message: constant.UploadSingleFailedMessage,
				Result:  result,
			})
		}
		return err
	}
	return ctx.JSON(dto.UploadSingleResponse{
		Message: constant.UploadSingleMessage,
		Result:  result,
	})
}

func (c *documentController) UploadURL(ctx *fiber.Ctx) error {
	var req dto.UploadURLRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	receipt, err := c.service.AddURL(ctx.UserContext(), req.URL, req.Metadata)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.UploadURLResponse{
		Message:    "URL submitted successfully",
		DocumentID: receipt.ID,
		Status:     receipt.Status,
	})
}

func (c *documentController) ListDocuments(ctx *fiber.Ctx) error {
	docs, err := c.service.ListDocuments(ctx.UserContext(), ctx.Query("tag"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get documents", dto.ListDocumentsResponse{Documents: docs}))
}

func (c *documentController) GetDocument(ctx *fiber.Ctx) error {
	doc, err := c.service.DocumentStatus(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get document", doc))
}
