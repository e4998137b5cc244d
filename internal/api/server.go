package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"taskr/internal/api/auth"
	"taskr/internal/api/middleware"
	"taskr/internal/authz"
	"taskr/internal/config"
	"taskr/internal/controller"
	"taskr/internal/model"
	"taskr/internal/pkg/metrics"
	"taskr/internal/pkg/ratelimit"
	"taskr/internal/taskstore"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、控制器以及 Gin 路由引擎。
// Web 表单面和 REST 面挂在同一个路由引擎上，共用同一个控制器。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	rdb     *redis.Client
	router  *gin.Engine
	auth    *auth.Handler
	ctrl    *controller.Controller
	limiter *ratelimit.Limiter
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化控制器与 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return newServerWith(cfg, logger, db, rdb), nil
}

// newServerWith 用现成的连接装配服务器，测试从这里进入。
func newServerWith(cfg *config.Config, logger *slog.Logger, db *gorm.DB, rdb *redis.Client) *Server {
	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	store := taskstore.NewStore(db)
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		rdb:     rdb,
		router:  r,
		auth:    auth.NewHandler(db, cfg.Security.JWTSecret, logger),
		ctrl:    controller.New(store, logger),
		limiter: ratelimit.New(rdb, logger, "taskr:ratelimit:", cfg.App.RateLimit, cfg.App.RateBurst),
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// SeedAdmin 根据配置创建种子管理员账号。
func (s *Server) SeedAdmin(ctx context.Context) error {
	sec := s.cfg.Security
	return s.auth.EnsureAdmin(ctx, sec.AdminName, sec.AdminEmail, sec.AdminPassword)
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	limited := middleware.RateLimitMiddleware(s.limiter, s.logger)
	s.router.POST("/register", limited, s.auth.Register)
	s.router.POST("/login", limited, s.auth.Login)

	// Web 表单面使用的任务路由
	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.POST("/logout", s.auth.Logout)
	authed.GET("/tasks", s.handleWebListTasks)
	authed.POST("/tasks", s.handleWebCreateTask)
	authed.POST("/tasks/:id/complete", s.handleWebCompleteTask)
	authed.POST("/tasks/:id/incomplete", s.handleWebIncompleteTask)
	authed.DELETE("/tasks/:id", s.handleWebDeleteTask)

	// REST 资源面，沿用旧系统的 /api/v1 前缀与报文格式
	apiGroup := s.router.Group("/api/v1")
	apiGroup.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	apiGroup.Use(limited)
	apiGroup.GET("/tasks", s.handleAPIListTasks)
	apiGroup.POST("/tasks", s.handleAPICreateTask)
	apiGroup.GET("/tasks/:id", s.handleAPIGetTask)
	apiGroup.PUT("/tasks/:id", s.handleAPIUpdateTask)
	apiGroup.DELETE("/tasks/:id", s.handleAPIDeleteTask)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getActor 从中间件写入的上下文键还原 actor。
func getActor(c *gin.Context) authz.Actor {
	actor := authz.Actor{Role: model.RoleUser}
	if v, ok := c.Get("userID"); ok {
		if uid, ok := v.(uint); ok {
			actor.UserID = uid
		}
	}
	if v, ok := c.Get("role"); ok {
		if role, ok := v.(string); ok && role != "" {
			actor.Role = role
		}
	}
	return actor
}

// parseTaskID 解析路径中的任务 ID。
func parseTaskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) logInternalError(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", slog.String("error", err.Error()))
}
