package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vaibhavdev309/tapestry/models"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (string, error)
	Login(ctx context.Context, req models.LoginRequest) (string, error)
	AdminLogin(ctx context.Context, req models.LoginRequest) (string, error)
}

type UserController struct {
	users  UserService
	logger *zap.Logger
}

func NewUserController(users UserService, logger *zap.Logger) *UserController {
	return &UserController{users: users, logger: logger}
}

func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := uc.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, uc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "token": token})
}

func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := uc.users.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, uc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func (uc *UserController) AdminLogin(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := uc.users.AdminLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, uc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}
