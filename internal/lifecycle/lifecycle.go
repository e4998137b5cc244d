package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	"taskr/internal/model"
)

// 任务状态机：
//
//	        MarkComplete
//	 Open ----------------> Completed
//	   ^                        |
//	   +------------------------+
//	        MarkIncomplete
//
// 没有第三种状态，也没有终态；删除之前任务可以在两个状态间任意往返。

// MarkComplete 返回完成转移后的状态。
//
// 对已完成的任务调用不报错，保持 Completed。
func MarkComplete(model.TaskStatus) model.TaskStatus {
	return model.StatusCompleted
}

// MarkIncomplete 返回重开转移后的状态，与 MarkComplete 对称。
func MarkIncomplete(model.TaskStatus) model.TaskStatus {
	return model.StatusOpen
}

// ParseStatus 解析外部传入的状态表示。
//
// 兼容两种形式：
//  1. 字符串: "Open" / "Completed"（不区分大小写）
//  2. 旧版数字编码: 1 表示 Open，0 表示 Completed
func ParseStatus(raw string) (model.TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return model.StatusOpen, nil
	case "completed", "complete":
		return model.StatusCompleted, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		if n == 1 {
			return model.StatusOpen, nil
		}
		if n == 0 {
			return model.StatusCompleted, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", raw)
}
