package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskr/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler 提供注册与登录接口。
type Handler struct {
	db        *gorm.DB
	jwtSecret []byte
	logger    *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(db *gorm.DB, jwtSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register 创建新用户（角色固定为 user，管理员通过启动种子产生）。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var existing model.User
	err := h.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hash),
		Role:     model.RoleUser,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if h.logger != nil {
			h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", email))
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Thanks for registering. Please login."})
}

// Login 校验用户并返回 JWT。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var user model.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password."})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password."})
		return
	}

	token, err := h.IssueToken(user.ID, user.Role)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email), slog.String("role", user.Role))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Logout 处理注销请求（无状态，直接返回成功）。
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Goodbye!"})
}

// EnsureAdmin 保证存在一个管理员账号（启动种子）。
//
// email 为空时不做任何事；账号已存在时只把角色抬升为 admin。
func (h *Handler) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}

	var user model.User
	err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.Role == model.RoleAdmin {
			return nil
		}
		return h.db.WithContext(ctx).Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("role", model.RoleAdmin).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := model.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	if err := h.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info("admin user seeded", slog.String("email", email))
	}
	return nil
}

// IssueToken 为用户签发 24 小时有效的 HS256 JWT，角色写入自定义 claim。
func (h *Handler) IssueToken(userID uint, role string) (string, error) {
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
