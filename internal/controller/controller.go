package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskr/internal/authz"
	"taskr/internal/lifecycle"
	"taskr/internal/model"
	"taskr/internal/pkg/metrics"
	"taskr/internal/taskstore"
)

// 控制器层错误。NotFound 直接沿用存储层哨兵，避免两套判定。
var (
	ErrNotFound         = taskstore.ErrNotFound
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError 表示调用方输入不合法（缺少必填项、日期无法解析等）。
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation 判断错误是否为输入校验失败。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TaskStore 控制器依赖的存储操作集合。
type TaskStore interface {
	Create(ctx context.Context, fields taskstore.CreateFields) (model.Task, error)
	Get(ctx context.Context, id uint) (model.Task, error)
	List(ctx context.Context, filter taskstore.ListFilter) ([]model.Task, error)
	Update(ctx context.Context, id uint, fields taskstore.UpdateFields) (model.Task, error)
	Delete(ctx context.Context, id uint) error
}

// Controller 是 Web 表单层和 REST API 共同调用的编排层。
//
// 授权与校验逻辑只在这里定义一次：每个变更操作先取任务、过 Guard、
// 再落到存储层，两个传输面由此保持一致的语义。actor 始终作为显式
// 参数传入，不存在任何全局的 "当前用户"。
type Controller struct {
	store  TaskStore
	logger *slog.Logger
}

// New 创建控制器。
func New(store TaskStore, logger *slog.Logger) *Controller {
	return &Controller{store: store, logger: logger}
}

// CreateTaskRequest 创建任务的输入。DueDate 为外部字符串表示。
type CreateTaskRequest struct {
	Name     string
	DueDate  string
	Priority int
	Status   string // 可选；空表示 Open
}

// UpdateTaskRequest 部分更新的输入，nil 字段不改动。
type UpdateTaskRequest struct {
	Name     *string
	DueDate  *string
	Priority *int
	Status   *string
}

// ListTasks 返回 actor 可见的一页任务，按截止日期升序。
//
// 普通用户只能看到自己的任务；管理员看到全部。
func (c *Controller) ListTasks(ctx context.Context, actor authz.Actor, statusFilter *model.TaskStatus, limit, offset int) ([]model.Task, error) {
	filter := taskstore.ListFilter{Status: statusFilter, Limit: limit, Offset: offset}
	if !actor.IsAdmin() {
		owner := actor.UserID
		filter.OwnerID = &owner
	}
	return c.store.List(ctx, filter)
}

// GetTask 读取单个任务。查看对所有已认证用户放行。
func (c *Controller) GetTask(ctx context.Context, actor authz.Actor, id uint) (model.Task, error) {
	task, err := c.store.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if d := authz.Authorize(actor, task, authz.ActionView); !d.Allowed {
		return model.Task{}, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}
	return task, nil
}

// CreateTask 校验输入并以 actor 为所有者创建任务。
func (c *Controller) CreateTask(ctx context.Context, actor authz.Actor, req CreateTaskRequest) (model.Task, error) {
	if strings.TrimSpace(req.Name) == "" {
		return model.Task{}, validationf("Name cannot be blank!")
	}

	var dueDate time.Time
	if req.DueDate != "" {
		parsed, err := parseDate(req.DueDate)
		if err != nil {
			return model.Task{}, validationf("invalid due_date %q", req.DueDate)
		}
		dueDate = parsed
	}

	status := model.StatusOpen
	if req.Status != "" {
		parsed, err := lifecycle.ParseStatus(req.Status)
		if err != nil {
			return model.Task{}, validationf("invalid status %q", req.Status)
		}
		status = parsed
	}

	task, err := c.store.Create(ctx, taskstore.CreateFields{
		UserID:   actor.UserID,
		Name:     strings.TrimSpace(req.Name),
		DueDate:  dueDate,
		Priority: req.Priority,
		Status:   status,
	})
	if err != nil {
		if errors.Is(err, taskstore.ErrEmptyName) {
			return model.Task{}, validationf("Name cannot be blank!")
		}
		return model.Task{}, err
	}

	metrics.TaskCreatedTotal.Inc()
	c.logger.Info("task created",
		slog.Uint64("task_id", uint64(task.ID)),
		slog.Uint64("user_id", uint64(actor.UserID)),
	)
	return task, nil
}

// SetStatus 执行 Open <-> Completed 的状态流转。
//
// 先取任务（不存在返回 ErrNotFound），再过 Guard 的 modify 检查，
// 最后通过存储层的原子更新落盘；被拒绝时存储状态不变。
func (c *Controller) SetStatus(ctx context.Context, actor authz.Actor, id uint, target model.TaskStatus) (model.Task, error) {
	if !target.Valid() {
		return model.Task{}, validationf("invalid status %q", target)
	}

	task, err := c.store.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if d := authz.Authorize(actor, task, authz.ActionModify); !d.Allowed {
		metrics.PermissionDeniedTotal.Inc()
		return model.Task{}, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}

	var next model.TaskStatus
	switch target {
	case model.StatusCompleted:
		next = lifecycle.MarkComplete(task.Status)
	case model.StatusOpen:
		next = lifecycle.MarkIncomplete(task.Status)
	}

	updated, err := c.store.Update(ctx, id, taskstore.UpdateFields{Status: &next})
	if err != nil {
		return model.Task{}, err
	}
	if next == model.StatusCompleted {
		metrics.TaskCompletedTotal.Inc()
	}
	c.logger.Info("task status changed",
		slog.Uint64("task_id", uint64(id)),
		slog.String("status", string(next)),
		slog.Uint64("actor_id", uint64(actor.UserID)),
	)
	return updated, nil
}

// UpdateTask 合并部分字段。两个传输面都走这里，Guard 检查对 REST 的
// PUT 同样生效。
func (c *Controller) UpdateTask(ctx context.Context, actor authz.Actor, id uint, req UpdateTaskRequest) (model.Task, error) {
	task, err := c.store.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if d := authz.Authorize(actor, task, authz.ActionModify); !d.Allowed {
		metrics.PermissionDeniedTotal.Inc()
		return model.Task{}, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}

	fields := taskstore.UpdateFields{Name: req.Name, Priority: req.Priority}
	if req.DueDate != nil {
		parsed, err := parseDate(*req.DueDate)
		if err != nil {
			return model.Task{}, validationf("invalid due_date %q", *req.DueDate)
		}
		fields.DueDate = &parsed
	}
	if req.Status != nil {
		parsed, err := lifecycle.ParseStatus(*req.Status)
		if err != nil {
			return model.Task{}, validationf("invalid status %q", *req.Status)
		}
		fields.Status = &parsed
	}

	updated, err := c.store.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, taskstore.ErrEmptyName) {
			return model.Task{}, validationf("Name cannot be blank!")
		}
		return model.Task{}, err
	}
	return updated, nil
}

// DeleteTask 删除任务。先取任务、过 Guard 的 delete 检查，再执行
// 存储层的原子删除。
func (c *Controller) DeleteTask(ctx context.Context, actor authz.Actor, id uint) error {
	task, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := authz.Authorize(actor, task, authz.ActionDelete); !d.Allowed {
		metrics.PermissionDeniedTotal.Inc()
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.TaskDeletedTotal.Inc()
	c.logger.Info("task deleted",
		slog.Uint64("task_id", uint64(id)),
		slog.Uint64("actor_id", uint64(actor.UserID)),
	)
	return nil
}

// parseDate 解析外部日期字符串。
//
// REST 面使用 "2006-01-02"，旧版 Web 表单使用 "01/02/2006"，两种都接受。
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", raw)
}
