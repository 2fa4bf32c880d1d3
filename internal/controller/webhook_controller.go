package controller

import (
	"ad-studio-be/internal/pkg/serverutils"
	"ad-studio-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleGatewayEvent(ctx *fiber.Ctx) error
}

type webhookController struct {
	dispatcher service.IDispatcherService
}

func NewWebhookController(dispatcher service.IDispatcherService) IWebhookController {
	return &webhookController{dispatcher: dispatcher}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhooks")
	h.Post("/stripe", c.HandleGatewayEvent)
}

// HandleGatewayEvent accepts a raw gateway event. A bad signature is a 400;
// an accepted event returns 202 immediately, processing happens off the
// request path.
func (c *webhookController) HandleGatewayEvent(ctx *fiber.Ctx) error {
	payload := ctx.Body()
	sigHeader := ctx.Get("Stripe-Signature")

	if err := c.dispatcher.Ingest(ctx.Context(), payload, sigHeader); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Event accepted", struct{}{}))
}
