package models

import (
	"errors"
	"fmt"
)

// 错误分类：只有 ErrStoreUnavailable 可重试（调用方退避重试），
// 其余错误对本次调用是终态，直接上报给用户/运维
var (
	ErrNotFound         = errors.New("company not found")
	ErrNoData           = errors.New("no telemetry data")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError 输入校验错误（用户可修正，不自动重试）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError 状态机非法迁移
// 并发 approve/reject 时先到者生效，后到者收到此错误而不是覆盖写
type InvalidTransitionError struct {
	CompanyID string
	From      ApplicationStatus
	To        ApplicationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for company %s: %s -> %s", e.CompanyID, e.From, e.To)
}

// NotEligibleError 非 approved 公司的遥测数据（记录日志后丢弃，不排队重放）
type NotEligibleError struct {
	CompanyID string
	Status    ApplicationStatus
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("company %s is not eligible for telemetry (status=%s)", e.CompanyID, e.Status)
}
