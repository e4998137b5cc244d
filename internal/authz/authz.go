package authz

import (
	"taskr/internal/model"
)

// Actor 是一次操作的发起者（由 JWT 中间件解析得到）。
type Actor struct {
	UserID uint   // 用户 ID
	Role   string // 角色: user / admin
}

// IsAdmin 判断是否为管理员。
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// Action 授权检查涉及的操作类型。
type Action string

const (
	ActionView   Action = "view"   // 查看
	ActionModify Action = "modify" // 修改（含状态流转）
	ActionDelete Action = "delete" // 删除
)

// Decision 授权结果。Allowed 为 false 时 Reason 说明拒绝原因。
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize 判定 actor 能否对 task 执行 action。
//
// 规则：
//  1. 管理员对任何任务的任何操作都放行
//  2. 查看对所有已认证用户放行（列表的归属过滤由调用方负责）
//  3. 修改/删除只对任务的所有者放行
//
// 纯函数，不访问存储。
func Authorize(actor Actor, task model.Task, action Action) Decision {
	if actor.IsAdmin() {
		return Decision{Allowed: true}
	}
	if action == ActionView {
		return Decision{Allowed: true}
	}
	if actor.UserID == task.UserID {
		return Decision{Allowed: true}
	}
	return Decision{Reason: "not your task"}
}
