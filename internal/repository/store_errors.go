package repository

import (
	"context"
	"errors"
	"fmt"

	"carbon-monitor/internal/models"
)

// wrapStoreErr 分类存储错误
// 超时/取消视为瞬时故障（ErrStoreUnavailable，调用方可退避重试），其余原样包装
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %s: %w", op, err.Error(), models.ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
