package model

import (
	"time"
)

// TaskStatus 任务状态。
type TaskStatus string

const (
	StatusOpen      TaskStatus = "Open"      // 未完成
	StatusCompleted TaskStatus = "Completed" // 已完成
)

// Valid 判断状态是否为合法枚举值。
func (s TaskStatus) Valid() bool {
	return s == StatusOpen || s == StatusCompleted
}

// Task 表示一条待办任务。
//
// 任务归属于创建它的用户（UserID），普通用户只能修改/删除自己的任务，
// 管理员可以操作任何人的任务。状态只有 Open / Completed 两种。
type Task struct {
	ID        uint      `gorm:"primaryKey"` // 任务唯一标识
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	UserID uint   `gorm:"not null;index"`    // 所属用户 ID
	User   User   `gorm:"foreignKey:UserID"` // 所属用户
	Name   string `gorm:"not null"`          // 任务名称（非空）

	DueDate    time.Time  `gorm:"type:date;index"`               // 截止日期
	Priority   int        `gorm:"default:1"`                     // 优先级
	PostedDate time.Time  `gorm:"type:date"`                     // 发布日期（创建时写入，之后不可编辑）
	Status     TaskStatus `gorm:"type:varchar(16);default:Open"` // 任务状态: "Open" / "Completed"
}
