package api

import (
	"errors"
	"net/http"

	"taskr/internal/controller"
	"taskr/internal/model"

	"github.com/gin-gonic/gin"
)

// Web 表单面的提示文案，沿用旧系统的 flash 消息。
const (
	flashTaskPosted     = "New entry was successfully posted. Thanks."
	flashTaskCompleted  = "The task was marked as complete. Nice."
	flashTaskIncomplete = "The task was marked as incomplete."
	flashTaskDeleted    = "The task was deleted."
	flashNotYourUpdate  = "You can only update tasks that belong to you."
	flashNotYourDelete  = "You can only delete tasks that belong to you."
)

type webCreateTaskRequest struct {
	Name     string `json:"name" binding:"required"`
	DueDate  string `json:"due_date"`
	Priority int    `json:"priority"`
}

// respondWebError 把领域错误翻译成 Web 面的提示；deniedFlash 是
// Guard 拒绝时展示给用户的文案。
func (s *Server) respondWebError(c *gin.Context, op, deniedFlash string, err error) {
	switch {
	case errors.Is(err, controller.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no such task"})
	case errors.Is(err, controller.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": deniedFlash})
	case controller.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logInternalError(c, op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleWebListTasks 返回任务页数据：未完成与已完成两组。
//
// GET /tasks
//
// 普通用户只看到自己的任务，管理员看到全部。
func (s *Server) handleWebListTasks(c *gin.Context) {
	actor := getActor(c)
	limit := s.cfg.App.PageSize

	open := model.StatusOpen
	openTasks, err := s.ctrl.ListTasks(c.Request.Context(), actor, &open, limit, 0)
	if err != nil {
		s.respondWebError(c, "list open tasks", "", err)
		return
	}
	completed := model.StatusCompleted
	completedTasks, err := s.ctrl.ListTasks(c.Request.Context(), actor, &completed, limit, 0)
	if err != nil {
		s.respondWebError(c, "list completed tasks", "", err)
		return
	}

	openViews := make([]taskView, 0, len(openTasks))
	for _, t := range openTasks {
		openViews = append(openViews, newTaskView(t))
	}
	completedViews := make([]taskView, 0, len(completedTasks))
	for _, t := range completedTasks {
		completedViews = append(completedViews, newTaskView(t))
	}

	c.JSON(http.StatusOK, gin.H{
		"open_tasks":      openViews,
		"completed_tasks": completedViews,
	})
}

// handleWebCreateTask 处理任务表单提交。
//
// POST /tasks
func (s *Server) handleWebCreateTask(c *gin.Context) {
	var req webCreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.ctrl.CreateTask(c.Request.Context(), getActor(c), controller.CreateTaskRequest{
		Name:     req.Name,
		DueDate:  req.DueDate,
		Priority: req.Priority,
	})
	if err != nil {
		s.respondWebError(c, "create task", "", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": flashTaskPosted,
		"task":    newTaskView(task),
	})
}

// handleWebCompleteTask 把任务标记为完成。
//
// POST /tasks/:id/complete
func (s *Server) handleWebCompleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.ctrl.SetStatus(c.Request.Context(), getActor(c), id, model.StatusCompleted)
	if err != nil {
		s.respondWebError(c, "complete task", flashNotYourUpdate, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": flashTaskCompleted,
		"task":    newTaskView(task),
	})
}

// handleWebIncompleteTask 把已完成任务重新打开。
//
// POST /tasks/:id/incomplete
func (s *Server) handleWebIncompleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.ctrl.SetStatus(c.Request.Context(), getActor(c), id, model.StatusOpen)
	if err != nil {
		s.respondWebError(c, "reopen task", flashNotYourUpdate, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": flashTaskIncomplete,
		"task":    newTaskView(task),
	})
}

// handleWebDeleteTask 删除任务。
//
// DELETE /tasks/:id
func (s *Server) handleWebDeleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := s.ctrl.DeleteTask(c.Request.Context(), getActor(c), id); err != nil {
		s.respondWebError(c, "delete task", flashNotYourDelete, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": flashTaskDeleted})
}
