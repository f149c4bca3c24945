package controller

import (
	"errors"

	"annotator-be/internal/dto"
	"annotator-be/internal/pkg/serverutils"
	"annotator-be/internal/service"
	"annotator-be/pkg/annotation"

	"github.com/gofiber/fiber/v2"
)

type IAnnotationController interface {
	RegisterRoutes(r fiber.Router, sessionMiddleware fiber.Handler)
	Get(ctx *fiber.Ctx) error
	Discard(ctx *fiber.Ctx) error
	Submit(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
	Count(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type annotationController struct {
	service service.IAnnotationService
}

func NewAnnotationController(service service.IAnnotationService) IAnnotationController {
	return &annotationController{service: service}
}

func (c *annotationController) RegisterRoutes(r fiber.Router, sessionMiddleware fiber.Handler) {
	h := r.Group("/data")
	h.Use(sessionMiddleware)
	h.Get("/session", c.Session)
	h.Get("/count", c.Count)
	h.Get("/submissions", c.History)
	h.Get("", c.Get)
	h.Delete("", c.Discard)
	h.Post("", c.Submit)
}

func identity(ctx *fiber.Ctx) dto.SessionIdentity {
	sessionID, email, _ := serverutils.Session(ctx)
	return dto.SessionIdentity{SessionId: sessionID, Email: email}
}

// errorStatuses is checked in order; the first match wins.
var errorStatuses = []struct {
	err  error
	code int
}{
	{annotation.ErrSamplingExhausted, fiber.StatusServiceUnavailable},
	{annotation.ErrNoCandidatesAvailable, fiber.StatusNotFound},
	{annotation.ErrRemoteTimeout, fiber.StatusGatewayTimeout},
	{annotation.ErrRemoteWriteFailed, fiber.StatusBadGateway},
	{annotation.ErrRemoteUnavailable, fiber.StatusBadGateway},
	{annotation.ErrNoPriorCandidate, fiber.StatusBadRequest},
	{annotation.ErrPreconditionFailed, fiber.StatusPreconditionFailed},
	{annotation.ErrInvalidAnnotationType, fiber.StatusBadRequest},
	{annotation.ErrInvalidArgument, fiber.StatusBadRequest},
}

func (c *annotationController) fail(ctx *fiber.Ctx, err error) error {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return serverutils.Fail(ctx, s.code, err.Error())
		}
	}
	return err
}

// Get serves the current candidate, or pages when direction is
// "forward" or "backward".
func (c *annotationController) Get(ctx *fiber.Ctx) error {
	id := identity(ctx)

	var (
		res *dto.CandidateResponse
		err error
	)
	switch ctx.Query("direction") {
	case "":
		var ok bool
		res, ok = c.service.GetCurrent(ctx.UserContext(), id)
		if !ok {
			return serverutils.Fail(ctx, fiber.StatusNotFound, "There are no records to show.")
		}
	case "forward":
		res, err = c.service.PageForward(ctx.UserContext(), id)
	case "backward":
		res, err = c.service.PageBackward(ctx.UserContext(), id)
	default:
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "direction must be forward or backward")
	}
	if err != nil {
		return c.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Candidate retrieved",
		"data":    res,
	})
}

func (c *annotationController) Discard(ctx *fiber.Ctx) error {
	expected := ctx.QueryInt("numberOfTriples", -1)
	if expected < 0 {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "numberOfTriples must be a non-negative integer")
	}

	if err := c.service.DiscardPending(ctx.UserContext(), identity(ctx), expected); err != nil {
		return c.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusAccepted,
		"message": "Pending candidates discarded",
		"data":    nil,
	})
}

func (c *annotationController) Submit(ctx *fiber.Ctx) error {
	var req dto.SubmitAnnotationsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.Validate(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, err.Error())
	}

	res, err := c.service.Submit(ctx.UserContext(), identity(ctx), &req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusCreated,
		"message": "Annotations saved",
		"data":    res,
	})
}

func (c *annotationController) Session(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Session state",
		"data":    c.service.Snapshot(ctx.UserContext(), identity(ctx)),
	})
}

func (c *annotationController) Count(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Annotation count",
		"data":    c.service.AnnotationCount(ctx.UserContext(), identity(ctx)),
	})
}

func (c *annotationController) History(ctx *fiber.Ctx) error {
	res, err := c.service.History(ctx.UserContext(), identity(ctx), ctx.QueryInt("page", 1), ctx.QueryInt("size", 20))
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Submissions retrieved",
		"data":    res,
	})
}
