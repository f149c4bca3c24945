package controller

import (
	"errors"
	"time"

	"annotator-be/internal/dto"
	"annotator-be/internal/pkg/serverutils"
	"annotator-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router, sessionMiddleware fiber.Handler)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service      service.IAuthService
	secureCookie bool
}

func NewAuthController(service service.IAuthService, secureCookie bool) IAuthController {
	return &authController{service: service, secureCookie: secureCookie}
}

func (c *authController) RegisterRoutes(r fiber.Router, sessionMiddleware fiber.Handler) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/logout", sessionMiddleware, c.Logout)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}

	res, err := c.service.Register(ctx.UserContext(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrPasswordMismatch):
			return serverutils.Fail(ctx, fiber.StatusNotAcceptable, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			return serverutils.Fail(ctx, fiber.StatusConflict, err.Error())
		default:
			return serverutils.Fail(ctx, fiber.StatusBadRequest, err.Error())
		}
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusCreated,
		"message": "User registered successfully",
		"data":    res,
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}

	res, err := c.service.Login(ctx.UserContext(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return serverutils.Fail(ctx, fiber.StatusUnauthorized, err.Error())
		}
		return err
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     serverutils.SessionCookieName,
		Value:    res.SessionToken,
		Expires:  res.ExpiresAt,
		HTTPOnly: true,
		Secure:   c.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Login successful",
		"data":    res,
	})
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	sessionID, _, _ := serverutils.Session(ctx)
	if err := c.service.Logout(ctx.UserContext(), sessionID); err != nil {
		return err
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     serverutils.SessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   c.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Logged out",
		"data":    nil,
	})
}
