package controller

import (
	"io"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	SetEnabled(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reprocess(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService  service.IDocumentService
	ingestionService service.IIngestionService
}

func NewDocumentController(documentService service.IDocumentService, ingestionService service.IIngestionService) IDocumentController {
	return &documentController{
		documentService:  documentService,
		ingestionService: ingestionService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Upload)
	h.Get("", c.GetAll)
	h.Patch(":id/enabled", c.SetEnabled)
	h.Post(":id/reprocess", c.Reprocess)
	h.Delete(":id", c.Delete)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperror.InvalidInput("A 'file' upload is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperror.InvalidInput("Unable to read uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return apperror.InvalidInput("Unable to read uploaded file")
	}

	res, err := c.ingestionService.Upload(ctx.UserContext(), fileHeader.Filename, content)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Success upload document", res))
}

func (c *documentController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.documentService.GetAll(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get documents", res))
}

func (c *documentController) SetEnabled(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.InvalidInput("Invalid document id")
	}

	var req dto.SetDocumentEnabledRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidInput("Invalid request body")
	}

	if err := c.documentService.SetEnabled(ctx.UserContext(), id, req.Enabled); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update document", nil))
}

func (c *documentController) Reprocess(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.InvalidInput("Invalid document id")
	}

	if err := c.ingestionService.Reprocess(ctx.UserContext(), id); err != nil {
		if err == service.ErrDocumentNotFound {
			return apperror.InvalidInput("Document not found")
		}
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Success schedule reprocess", nil))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.InvalidInput("Invalid document id")
	}

	if err := c.documentService.Delete(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete document", nil))
}
