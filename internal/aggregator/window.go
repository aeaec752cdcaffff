package aggregator

import (
	"sort"
	"time"

	"carbon-monitor/internal/models"
)

// Window 有界滑动窗口（最近 N 条读数，按时间戳升序）
// 读数可以乱序到达：晚到的读数插入到排序后的正确位置，从不因迟到被拒绝；
// 时间戳完全相同时按后写覆盖去重
type Window struct {
	capacity int
	points   []models.ReadingPoint
}

// NewWindow 创建窗口
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		points:   make([]models.ReadingPoint, 0, capacity),
	}
}

// Insert 插入一条读数
func (w *Window) Insert(timestamp time.Time, value float64) {
	// 二分定位插入点
	i := sort.Search(len(w.points), func(i int) bool {
		return !w.points[i].Timestamp.Before(timestamp)
	})

	// 相同时间戳：后写覆盖
	if i < len(w.points) && w.points[i].Timestamp.Equal(timestamp) {
		w.points[i].Value = value
		return
	}

	w.points = append(w.points, models.ReadingPoint{})
	copy(w.points[i+1:], w.points[i:])
	w.points[i] = models.ReadingPoint{Timestamp: timestamp, Value: value}

	// 超出容量时淘汰最旧的读数
	if len(w.points) > w.capacity {
		w.points = w.points[1:]
	}
}

// Len 窗口中的读数条数
func (w *Window) Len() int {
	return len(w.points)
}

// Latest 最新一条读数
func (w *Window) Latest() (models.ReadingPoint, bool) {
	if len(w.points) == 0 {
		return models.ReadingPoint{}, false
	}
	return w.points[len(w.points)-1], true
}

// TrendPct 相对上一条读数的变化百分比
// previous 为 0 或不存在时定义为 0（避免除零）
func (w *Window) TrendPct() float64 {
	if len(w.points) < 2 {
		return 0
	}
	latest := w.points[len(w.points)-1].Value
	previous := w.points[len(w.points)-2].Value
	if previous <= 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}

// Slope 窗口内读数的最小二乘斜率（单位：值/秒）
// 读数不足两条或时间无跨度时为 0
func (w *Window) Slope() float64 {
	n := len(w.points)
	if n < 2 {
		return 0
	}

	// 以窗口首条时间为原点，避免大时间戳的精度损失
	t0 := w.points[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range w.points {
		x := p.Timestamp.Sub(t0).Seconds()
		y := p.Value
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// Forecast 对固定时间跨度的线性外推：current + slope * horizon
// 严格递增的窗口斜率为正，预测值必然 >= 当前值
func (w *Window) Forecast(horizon time.Duration) float64 {
	latest, ok := w.Latest()
	if !ok {
		return 0
	}
	return latest.Value + w.Slope()*horizon.Seconds()
}

// Points 窗口内容的拷贝（升序）
func (w *Window) Points() []models.ReadingPoint {
	out := make([]models.ReadingPoint, len(w.points))
	copy(out, w.points)
	return out
}
