package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/coursedesk/coursedesk/app/models"
	"github.com/coursedesk/coursedesk/app/repository"
	"github.com/coursedesk/coursedesk/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates an account and issues its API key. The raw key is
// only returned here; we store the hash.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "name, email and password are required")
	}

	users := repository.GetGlobalRepositories().User

	if _, err := users.GetByEmail(req.Email); err == nil {
		return respondError(c, fiber.StatusConflict, "EMAIL_TAKEN", "an account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not create account")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", err.Error())
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not create account")
	}

	if err := users.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return respondError(c, fiber.StatusConflict, "EMAIL_TAKEN", "an account with this email already exists")
		}
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not create account")
	}

	return respondSuccess(c, fiber.StatusCreated, fiber.Map{
		"user":    user,
		"api_key": rawKey,
	})
}

// HandleLogin verifies credentials and rotates the account's API key.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if err := validator.New().Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "BAD_REQUEST", "email and password are required")
	}

	users := repository.GetGlobalRepositories().User

	user, err := users.GetByEmail(req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		return respondError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is wrong")
	}
	if !user.IsActive() {
		return respondError(c, fiber.StatusForbidden, "ACCOUNT_DISABLED", "account is not active")
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not issue api key")
	}
	now := time.Now()
	user.LastLoginAt = &now

	if err := users.Update(user); err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not issue api key")
	}

	return respondSuccess(c, fiber.StatusOK, fiber.Map{
		"user":    user,
		"api_key": rawKey,
	})
}

// HandleRevokeAPIKey invalidates the caller's current key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	users := repository.GetGlobalRepositories().User
	user, err := users.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not revoke api key")
	}

	user.RevokeAPIKey()
	if err := users.Update(user); err != nil {
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL", "could not revoke api key")
	}

	return respondSuccess(c, fiber.StatusOK, fiber.Map{"revoked": true})
}
