package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskr/internal/controller"
	"taskr/internal/model"

	"github.com/gin-gonic/gin"
)

// taskView 是两个传输面共用的任务 JSON 表示。
type taskView struct {
	TaskID     uint   `json:"task_id"`
	Name       string `json:"name"`
	DueDate    string `json:"due_date"`
	Priority   int    `json:"priority"`
	PostedDate string `json:"posted_date"`
	Status     string `json:"status"`
	OwnerID    uint   `json:"owner_id"`
}

const dateLayout = "2006-01-02"

func newTaskView(t model.Task) taskView {
	view := taskView{
		TaskID:   t.ID,
		Name:     t.Name,
		Priority: t.Priority,
		Status:   string(t.Status),
		OwnerID:  t.UserID,
	}
	if !t.DueDate.IsZero() {
		view.DueDate = t.DueDate.Format(dateLayout)
	}
	if !t.PostedDate.IsZero() {
		view.PostedDate = t.PostedDate.Format(dateLayout)
	}
	return view
}

// statusValue 容忍两种 JSON 形式的状态：字符串 "Open"/"Completed"
// 和旧版数字编码（1 = Open, 0 = Completed）。
type statusValue string

func (s *statusValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = statusValue(str)
		return nil
	}
	// 数字形式原样保留，由 lifecycle.ParseStatus 解释
	*s = statusValue(b)
	return nil
}

type apiCreateTaskRequest struct {
	Name     string      `json:"name"`
	DueDate  string      `json:"due_date"`
	Priority int         `json:"priority"`
	Status   statusValue `json:"status"`
}

type apiUpdateTaskRequest struct {
	Name     *string      `json:"name"`
	DueDate  *string      `json:"due_date"`
	Priority *int         `json:"priority"`
	Status   *statusValue `json:"status"`
}

// respondAPIError 把控制器的领域错误翻译成旧系统的 REST 报文。
func (s *Server) respondAPIError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, controller.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Element does not exist"})
	case errors.Is(err, controller.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case controller.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logInternalError(c, op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleAPIListTasks 处理集合端点。
//
// GET /api/v1/tasks
//
// 固定返回第一页（大小 10），与旧系统一致；普通用户只看到自己的任务。
func (s *Server) handleAPIListTasks(c *gin.Context) {
	actor := getActor(c)
	tasks, err := s.ctrl.ListTasks(c.Request.Context(), actor, nil, s.cfg.App.PageSize, 0)
	if err != nil {
		s.respondAPIError(c, "list tasks", err)
		return
	}

	items := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, newTaskView(t))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// handleAPIGetTask 处理单资源端点。
//
// GET /api/v1/tasks/:id
func (s *Server) handleAPIGetTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.ctrl.GetTask(c.Request.Context(), getActor(c), id)
	if err != nil {
		s.respondAPIError(c, "get task", err)
		return
	}
	c.JSON(http.StatusOK, newTaskView(task))
}

// handleAPICreateTask 处理创建任务的请求。
//
// POST /api/v1/tasks
func (s *Server) handleAPICreateTask(c *gin.Context) {
	var req apiCreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be blank!"})
		return
	}

	task, err := s.ctrl.CreateTask(c.Request.Context(), getActor(c), controller.CreateTaskRequest{
		Name:     req.Name,
		DueDate:  req.DueDate,
		Priority: req.Priority,
		Status:   string(req.Status),
	})
	if err != nil {
		s.respondAPIError(c, "create task", err)
		return
	}
	c.JSON(http.StatusOK, newTaskView(task))
}

// handleAPIUpdateTask 处理部分更新。
//
// PUT /api/v1/tasks/:id — 报文里出现的字段才会被改动（PATCH 语义）。
func (s *Server) handleAPIUpdateTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var req apiUpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := controller.UpdateTaskRequest{
		Name:     req.Name,
		DueDate:  req.DueDate,
		Priority: req.Priority,
	}
	if req.Status != nil {
		status := string(*req.Status)
		update.Status = &status
	}

	task, err := s.ctrl.UpdateTask(c.Request.Context(), getActor(c), id, update)
	if err != nil {
		s.respondAPIError(c, "update task", err)
		return
	}
	c.JSON(http.StatusOK, newTaskView(task))
}

// handleAPIDeleteTask 处理删除。
//
// DELETE /api/v1/tasks/:id
func (s *Server) handleAPIDeleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := s.ctrl.DeleteTask(c.Request.Context(), getActor(c), id); err != nil {
		s.respondAPIError(c, "delete task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": fmt.Sprintf("task id %d deleted", id)})
}
