package handlers

import (
	"errors"
	"strings"

	"shelfshare/internal/core/domain"
	"shelfshare/internal/core/services"
	"shelfshare/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a new user account
// @Summary Register
// @Description Create a new user account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" || input.Email == "" {
		return response.BadRequest(c, "Username and email are required")
	}
	if len(input.Password) < 8 {
		return response.BadRequest(c, "Password must be at least 8 characters")
	}

	user, err := h.authService.Register(c.Context(), &input)
	if err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return response.BadRequest(c, "Username or email already taken")
		}
		return response.InternalServerError(c, "Registration failed")
	}

	return response.Created(c, "Registered", fiber.Map{"user": user.ToResponse()})
}

// Login authenticates a user
// @Summary Login
// @Description Authenticate and receive an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Credentials"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(c.Context(), &input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return response.Unauthorized(c, "Invalid username or password")
		}
		return response.InternalServerError(c, "Login failed")
	}

	return response.Success(c, "Logged in", result)
}

// Me returns the caller's profile
// @Summary Profile
// @Description Get the authenticated user's profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	user, err := h.authService.GetProfile(c.Context(), userID)
	if err != nil {
		return response.NotFound(c, "User not found")
	}

	return response.Success(c, "Profile retrieved", fiber.Map{"user": user})
}
