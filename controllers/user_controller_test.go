package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
)

func TestUserController_Register(t *testing.T) {
	t.Run("Success - 201 Created", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/register", uc.Register)

		mockService.On("Register", mock.Anything, models.RegisterRequest{
			Name: "Asha", Email: "asha@example.com", Password: "longenough",
		}).Return("jwt-token", nil).Once()

		w := doJSON(r, http.MethodPost, "/register", `{"name":"Asha","email":"asha@example.com","password":"longenough"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":true,"token":"jwt-token"}`, w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Field errors - 400 Bad Request", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/register", uc.Register)

		w := doJSON(r, http.MethodPost, "/register", `{"name":"Asha","email":"not-an-email","password":"short"}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body struct {
			Success bool         `json:"success"`
			Message string       `json:"message"`
			Errors  []FieldError `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "Validation failed", body.Message)
		assert.ElementsMatch(t, []FieldError{
			{Field: "email", Message: "must be a valid email"},
			{Field: "password", Message: "must be at least 8"},
		}, body.Errors)
		mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Malformed JSON - 400 Bad Request", func(t *testing.T) {
		uc := NewUserController(new(MockUserService), zap.NewNop())
		r := newRouter()
		r.POST("/register", uc.Register)

		w := doJSON(r, http.MethodPost, "/register", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid request body")
	})

	t.Run("Failure - Email taken - 400 Bad Request", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/register", uc.Register)

		mockService.On("Register", mock.Anything, mock.Anything).
			Return("", apperrors.Validation("User already exists")).Once()

		w := doJSON(r, http.MethodPost, "/register", `{"name":"Asha","email":"asha@example.com","password":"longenough"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"User already exists"}`, w.Body.String())
	})
}

func TestUserController_Login(t *testing.T) {
	t.Run("Success - 200 OK", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/login", uc.Login)

		mockService.On("Login", mock.Anything, models.LoginRequest{Email: "asha@example.com", Password: "pw"}).
			Return("jwt-token", nil).Once()

		w := doJSON(r, http.MethodPost, "/login", `{"email":"asha@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jwt-token")
	})

	t.Run("Failure - Invalid credentials - 401 Unauthorized", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/login", uc.Login)

		mockService.On("Login", mock.Anything, mock.Anything).
			Return("", apperrors.Unauthorized("Invalid credentials")).Once()

		w := doJSON(r, http.MethodPost, "/login", `{"email":"asha@example.com","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"Invalid credentials"}`, w.Body.String())
	})

	t.Run("Failure - Internal error is not leaked - 500", func(t *testing.T) {
		mockService := new(MockUserService)
		uc := NewUserController(mockService, zap.NewNop())
		r := newRouter()
		r.POST("/admin", uc.AdminLogin)

		mockService.On("AdminLogin", mock.Anything, mock.Anything).
			Return("", errors.New("mongo: connection refused")).Once()

		w := doJSON(r, http.MethodPost, "/admin", `{"email":"admin@example.com","password":"pw"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, w.Body.String())
	})
}
