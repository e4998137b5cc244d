package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"taskr/internal/authz"
	"taskr/internal/model"
	"taskr/internal/taskstore"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestController(t *testing.T) (*Controller, *taskstore.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := taskstore.NewStore(db)
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

var (
	owner    = authz.Actor{UserID: 1, Role: model.RoleUser}
	stranger = authz.Actor{UserID: 2, Role: model.RoleUser}
	admin    = authz.Actor{UserID: 99, Role: model.RoleAdmin}
)

func seedTask(t *testing.T, ctrl *Controller, actor authz.Actor, name string) model.Task {
	t.Helper()
	task, err := ctrl.CreateTask(context.Background(), actor, CreateTaskRequest{
		Name:    name,
		DueDate: "2016-02-23",
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestCreateTask_OwnerIsActor(t *testing.T) {
	ctrl, _ := newTestController(t)

	task, err := ctrl.CreateTask(context.Background(), owner, CreateTaskRequest{
		Name:     "Purchase Real Python Again",
		DueDate:  "2016-02-23",
		Priority: 10,
		Status:   "1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Name != "Purchase Real Python Again" {
		t.Fatalf("unexpected name %s", task.Name)
	}
	if task.UserID != owner.UserID {
		t.Fatalf("owner must be the actor, got %d", task.UserID)
	}
	if task.Status != model.StatusOpen {
		t.Fatalf("legacy status 1 must map to Open, got %s", task.Status)
	}
	want := time.Date(2016, 2, 23, 0, 0, 0, 0, time.UTC)
	if !task.DueDate.Equal(want) {
		t.Fatalf("due date parsed wrong: %v", task.DueDate)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	ctrl, store := newTestController(t)

	cases := []CreateTaskRequest{
		{Name: "", DueDate: "2016-02-23"},
		{Name: "   "},
		{Name: "ok", DueDate: "not-a-date"},
		{Name: "ok", Status: "qqqq"},
	}
	for _, req := range cases {
		if _, err := ctrl.CreateTask(context.Background(), owner, req); !IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}

	// 校验失败不得留下任何行
	count, err := store.Count(context.Background(), taskstore.ListFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows persisted, got %d", count)
	}
}

func TestCreateTask_WebFormDateAccepted(t *testing.T) {
	ctrl, _ := newTestController(t)

	task, err := ctrl.CreateTask(context.Background(), owner, CreateTaskRequest{
		Name:    "Go to the bank",
		DueDate: "02/05/2015",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Date(2015, 2, 5, 0, 0, 0, 0, time.UTC)
	if !task.DueDate.Equal(want) {
		t.Fatalf("form date parsed wrong: %v", task.DueDate)
	}
}

func TestSetStatus_StrangerDeniedAndStateUnchanged(t *testing.T) {
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "mine")

	_, err := ctrl.SetStatus(context.Background(), stranger, task.ID, model.StatusCompleted)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	got, err := ctrl.GetTask(context.Background(), owner, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusOpen {
		t.Fatalf("denied transition must leave stored state unchanged, got %s", got.Status)
	}
}

func TestDeleteTask_StrangerDeniedAndRowKept(t *testing.T) {
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "mine")

	if err := ctrl.DeleteTask(context.Background(), stranger, task.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := ctrl.GetTask(context.Background(), owner, task.ID); err != nil {
		t.Fatalf("task must survive a denied delete: %v", err)
	}
}

func TestUpdateTask_StrangerDenied(t *testing.T) {
	// REST 的 PUT 与 Web 面同样过 Guard（统一策略）
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "mine")

	name := "hijacked"
	_, err := ctrl.UpdateTask(context.Background(), stranger, task.ID, UpdateTaskRequest{Name: &name})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	got, _ := ctrl.GetTask(context.Background(), owner, task.ID)
	if got.Name != "mine" {
		t.Fatalf("denied update must leave the row unchanged, got %s", got.Name)
	}
}

func TestAdmin_CanActOnAnyTask(t *testing.T) {
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "mine")

	updated, err := ctrl.SetStatus(context.Background(), admin, task.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("admin complete: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s", updated.Status)
	}

	if err := ctrl.DeleteTask(context.Background(), admin, task.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestSetStatus_RoundTrip(t *testing.T) {
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "cycle me")

	for i := 0; i < 3; i++ {
		done, err := ctrl.SetStatus(context.Background(), owner, task.ID, model.StatusCompleted)
		if err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		if done.Status != model.StatusCompleted {
			t.Fatalf("expected Completed, got %s", done.Status)
		}
		reopened, err := ctrl.SetStatus(context.Background(), owner, task.ID, model.StatusOpen)
		if err != nil {
			t.Fatalf("reopen %d: %v", i, err)
		}
		if reopened.Status != model.StatusOpen {
			t.Fatalf("expected Open, got %s", reopened.Status)
		}
	}
}

func TestSetStatus_AlreadyCompletedNoError(t *testing.T) {
	ctrl, _ := newTestController(t)
	task := seedTask(t, ctrl, owner, "twice done")

	if _, err := ctrl.SetStatus(context.Background(), owner, task.ID, model.StatusCompleted); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	got, err := ctrl.SetStatus(context.Background(), owner, task.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("second complete must not error: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Fatalf("expected Completed, got %s", got.Status)
	}
}

func TestUpdateTask_AbsentID(t *testing.T) {
	ctrl, store := newTestController(t)

	name := "ghost"
	_, err := ctrl.UpdateTask(context.Background(), owner, 209, UpdateTaskRequest{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	count, _ := store.Count(context.Background(), taskstore.ListFilter{})
	if count != 0 {
		t.Fatalf("update on absent id must not create rows")
	}
}

func TestListTasks_ScopedUnlessAdmin(t *testing.T) {
	ctrl, _ := newTestController(t)
	seedTask(t, ctrl, owner, "task of 1")
	seedTask(t, ctrl, stranger, "task of 2")

	mine, err := ctrl.ListTasks(context.Background(), owner, nil, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != owner.UserID {
		t.Fatalf("non-admin must only see own tasks, got %+v", mine)
	}

	all, err := ctrl.ListTasks(context.Background(), admin, nil, 10, 0)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin must see all tasks, got %d", len(all))
	}
}

func TestDeleteTask_AbsentID(t *testing.T) {
	ctrl, _ := newTestController(t)
	if err := ctrl.DeleteTask(context.Background(), owner, 209); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
