package controller

import (
	"dermascan-be/internal/dto"
	"dermascan-be/internal/pkg/serverutils"
	"dermascan-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAnalysisController interface {
	RegisterRoutes(r fiber.Router)
	AnalyzeSkin(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
}

type analysisController struct {
	service   service.IAnalysisService
	jwtSecret string
}

func NewAnalysisController(service service.IAnalysisService, jwtSecret string) IAnalysisController {
	return &analysisController{service: service, jwtSecret: jwtSecret}
}

func (c *analysisController) RegisterRoutes(r fiber.Router) {
	auth := serverutils.JwtMiddleware(c.jwtSecret)

	r.Post("/functions/v1/analyze-skin", auth, c.AnalyzeSkin)

	h := r.Group("/api/analysis/v1")
	h.Use(auth)
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
}

// AnalyzeSkin answers with the bare result object rather than the /api envelope.
func (c *analysisController) AnalyzeSkin(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.AnalyzeSkinRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Analyze(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(res)
}

func (c *analysisController) Create(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateAnalysisRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success save analysis", res))
}

func (c *analysisController) Show(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewValidationError("Invalid analysis id", err)
	}

	res, err := c.service.Show(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show analysis", res))
}

func (c *analysisController) GetAll(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ListAnalysesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid query", err)
	}

	res, total, err := c.service.List(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all analysis", fiber.Map{
		"items": res,
		"total": total,
	}))
}
