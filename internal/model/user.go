package model

import "time"

// 用户角色。
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 表示系统用户。
type User struct {
	ID        uint      `gorm:"primaryKey"`                    // 用户 ID
	Name      string    `gorm:"type:varchar(64);not null"`     // 用户名
	Email     string    `gorm:"type:varchar(191);uniqueIndex"` // 邮箱（唯一）
	Password  string    `gorm:"not null"`                      // bcrypt 哈希
	Role      string    `gorm:"type:varchar(16);default:user"` // 角色: user / admin
	CreatedAt time.Time // 创建时间

	Tasks []Task `gorm:"foreignKey:UserID"`
}
