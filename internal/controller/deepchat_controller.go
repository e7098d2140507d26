package controller

import (
	"curiow-be/internal/dto"
	"curiow-be/internal/pkg/serverutils"
	"curiow-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDeepChatController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	GetPanel(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
	AskAsync(ctx *fiber.Ctx) error
	AskFollowUp(ctx *fiber.Ctx) error
	CancelTurn(ctx *fiber.Ctx) error
	NewSession(ctx *fiber.Ctx) error
	UseSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	DailySession(ctx *fiber.Ctx) error
}

type deepChatController struct {
	deepChatService service.IDeepChatService
	auth            fiber.Handler
}

func NewDeepChatController(deepChatService service.IDeepChatService, auth fiber.Handler) IDeepChatController {
	return &deepChatController{
		deepChatService: deepChatService,
		auth:            auth,
	}
}

func (c *deepChatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/deepchat/v1")
	h.Use(c.auth)
	h.Get("daily-session", c.DailySession)

	g := h.Group("/gems/:gemId")
	g.Post("open", c.Open)
	g.Get("panel", c.GetPanel)
	g.Post("ask", c.Ask)
	g.Post("ask/async", c.AskAsync)
	g.Post("turns/:turnId/follow-ups/:index", c.AskFollowUp)
	g.Post("turns/:turnId/cancel", c.CancelTurn)
	g.Post("sessions/new", c.NewSession)
	g.Get("sessions", c.ListSessions)
	g.Post("sessions/:sessionId/use", c.UseSession)
	g.Delete("sessions/:sessionId", c.DeleteSession)
}

func userID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals("user_id").(string)
	return id
}

func (c *deepChatController) Open(ctx *fiber.Ctx) error {
	var req dto.OpenChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.deepChatService.Open(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat opened", res))
}

func (c *deepChatController) GetPanel(ctx *fiber.Ctx) error {
	res, err := c.deepChatService.GetPanel(ctx.UserContext(), userID(ctx), ctx.Params("gemId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Panel", res))
}

func (c *deepChatController) parseAsk(ctx *fiber.Ctx) (*dto.AskRequest, error) {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *deepChatController) Ask(ctx *fiber.Ctx) error {
	req, err := c.parseAsk(ctx)
	if err != nil {
		return err
	}

	res, err := c.deepChatService.Ask(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Question answered", res))
}

func (c *deepChatController) AskAsync(ctx *fiber.Ctx) error {
	req, err := c.parseAsk(ctx)
	if err != nil {
		return err
	}

	res, err := c.deepChatService.AskAsync(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Question dispatched", res))
}

func (c *deepChatController) AskFollowUp(ctx *fiber.Ctx) error {
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid follow-up index")
	}

	res, err := c.deepChatService.AskFollowUp(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), ctx.Params("turnId"), index)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Question answered", res))
}

func (c *deepChatController) CancelTurn(ctx *fiber.Ctx) error {
	if err := c.deepChatService.CancelTurn(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), ctx.Params("turnId")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Turn cancelled", nil))
}

func (c *deepChatController) NewSession(ctx *fiber.Ctx) error {
	var req dto.NewSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.deepChatService.NewSession(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("New session", res))
}

func (c *deepChatController) UseSession(ctx *fiber.Ctx) error {
	res, err := c.deepChatService.UseSession(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), ctx.Params("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session loaded", res))
}

func (c *deepChatController) ListSessions(ctx *fiber.Ctx) error {
	res, err := c.deepChatService.ListSessions(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Sessions", res))
}

func (c *deepChatController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.deepChatService.DeleteSession(ctx.UserContext(), userID(ctx), ctx.Params("gemId"), ctx.Params("sessionId")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session deleted", nil))
}

func (c *deepChatController) DailySession(ctx *fiber.Ctx) error {
	res, err := c.deepChatService.DailySession(ctx.UserContext(), userID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Daily session", res))
}
