package evaluator

import (
	"time"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
)

// 告警文案（展示层原样显示）
const (
	ReasonCurrentExceedsCap  = "current emissions exceed cap"
	ReasonForecastExceedsCap = "projected to exceed cap within horizon"
)

// ComplianceEvaluator 合规评估器
// 给定 (current, forecast, cap) 的纯函数：相同输入必然得到相同告警状态，
// 不产生重复告警，上一次告警由本次结果覆盖
type ComplianceEvaluator struct {
	breachRatio float64
	warnRatio   float64
}

// NewComplianceEvaluator 创建合规评估器
func NewComplianceEvaluator(cfg *config.Config) *ComplianceEvaluator {
	return &ComplianceEvaluator{
		breachRatio: cfg.Alert.BreachRatio,
		warnRatio:   cfg.Alert.WarnRatio,
	}
}

// Evaluate 评估当前值和预测值相对排放上限的合规级别
//   - current >= breachRatio*cap → breach
//   - forecast >= warnRatio*cap 且 current 未超 → warning
//   - 否则 → none（清除此前的活跃告警）
func (e *ComplianceEvaluator) Evaluate(current, forecast, emissionCap float64, at time.Time) models.ComplianceAlert {
	if current >= e.breachRatio*emissionCap {
		return models.ComplianceAlert{
			Severity:    models.SeverityBreach,
			Reason:      ReasonCurrentExceedsCap,
			TriggeredAt: at,
		}
	}

	if forecast >= e.warnRatio*emissionCap {
		return models.ComplianceAlert{
			Severity:    models.SeverityWarning,
			Reason:      ReasonForecastExceedsCap,
			TriggeredAt: at,
		}
	}

	return models.ComplianceAlert{
		Severity:    models.SeverityNone,
		TriggeredAt: at,
	}
}
