package taskstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskr/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 存储层错误。调用方用 errors.Is 判断。
var (
	ErrNotFound      = errors.New("task not found")
	ErrEmptyName     = errors.New("task name cannot be blank")
	ErrInvalidStatus = errors.New("invalid task status")
)

// 默认分页参数，限制公开集合接口的响应大小。
const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// Store 提供对任务表的原子化 CRUD 操作。
//
// 所有 "先检查存在、再改动" 的序列（Update / Delete）都在单个事务或
// 单条带条件的语句内完成，并发删除不会让已通过的存在性检查失效：
// 两个并发的同 ID Delete 恰好一个成功、一个得到 ErrNotFound。
type Store struct {
	db *gorm.DB
}

// NewStore 创建任务存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateFields 创建任务的字段。
type CreateFields struct {
	UserID     uint
	Name       string
	DueDate    time.Time
	Priority   int
	PostedDate time.Time        // 零值时写入当前时间
	Status     model.TaskStatus // 空时默认 Open
}

// UpdateFields 部分更新的字段，nil 表示不改动（PATCH 语义）。
type UpdateFields struct {
	Name     *string
	DueDate  *time.Time
	Priority *int
	Status   *model.TaskStatus
}

// ListFilter 列表过滤与分页。
type ListFilter struct {
	Status  *model.TaskStatus // 按状态过滤
	OwnerID *uint             // 按所有者过滤
	Limit   int               // <=0 时使用 DefaultLimit
	Offset  int               // <0 时使用 DefaultOffset
}

// Create 校验并写入一条新任务，返回带 ID 的完整行。
func (s *Store) Create(ctx context.Context, fields CreateFields) (model.Task, error) {
	if strings.TrimSpace(fields.Name) == "" {
		return model.Task{}, ErrEmptyName
	}

	task := model.Task{
		UserID:     fields.UserID,
		Name:       fields.Name,
		DueDate:    fields.DueDate,
		Priority:   fields.Priority,
		PostedDate: fields.PostedDate,
		Status:     fields.Status,
	}
	if task.PostedDate.IsZero() {
		task.PostedDate = time.Now()
	}
	if task.Status == "" {
		task.Status = model.StatusOpen
	}
	if !task.Status.Valid() {
		return model.Task{}, ErrInvalidStatus
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// Get 按 ID 读取任务。
func (s *Store) Get(ctx context.Context, id uint) (model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	return task, nil
}

// List 返回按截止日期升序排列的一页任务。
//
// 同一组过滤/分页参数在没有并发写入时总是返回确定的一页。
func (s *Store) List(ctx context.Context, filter ListFilter) ([]model.Task, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = DefaultOffset
	}

	query := s.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OwnerID != nil {
		query = query.Where("user_id = ?", *filter.OwnerID)
	}

	tasks := []model.Task{}
	if err := query.Order("due_date ASC, id ASC").Limit(limit).Offset(offset).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update 将给定的字段合并进已有行，未给定的字段保持不变。
//
// 存在性检查与合并在同一个事务内完成，并持有行锁，因此检查通过后
// 到合并之间不存在外部删除可以钻的窗口；行在检查时已不存在则返回
// ErrNotFound。
func (s *Store) Update(ctx context.Context, id uint, fields UpdateFields) (model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if fields.Name != nil {
			name := strings.TrimSpace(*fields.Name)
			if name == "" {
				return ErrEmptyName
			}
			task.Name = name
		}
		if fields.DueDate != nil {
			task.DueDate = *fields.DueDate
		}
		if fields.Priority != nil {
			task.Priority = *fields.Priority
		}
		if fields.Status != nil {
			if !fields.Status.Valid() {
				return ErrInvalidStatus
			}
			task.Status = *fields.Status
		}

		return tx.Save(&task).Error
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// Delete 删除任务。
//
// 单条带条件的 DELETE：RowsAffected 为 0 说明行在删除时刻已不存在，
// 返回 ErrNotFound。成功返回意味着行在删除时刻确实存在。
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Task{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count 返回满足过滤条件的任务总数。
func (s *Store) Count(ctx context.Context, filter ListFilter) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OwnerID != nil {
		query = query.Where("user_id = ?", *filter.OwnerID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
