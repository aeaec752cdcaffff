package consumer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher 按公司分发任务
// 每个公司一个有序队列和一个工作 goroutine：同一公司的任务按入队顺序
// 串行执行，不同公司互不影响（单写者约束的执行侧）
type Dispatcher struct {
	queueSize int
	logger    *zap.Logger

	mu      sync.Mutex
	queues  map[string]chan func()
	ctx     context.Context
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher 创建分发器
func NewDispatcher(queueSize int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queueSize: queueSize,
		logger:    logger,
		queues:    make(map[string]chan func()),
	}
}

// Start 绑定生命周期上下文
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	d.started = true
}

// Dispatch 将任务投递到指定公司的队列（队列满时阻塞，形成背压）
func (d *Dispatcher) Dispatch(companyID string, task func()) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		d.logger.Error("Dispatcher not started, task dropped",
			zap.String("company_id", companyID),
		)
		return
	}

	queue, ok := d.queues[companyID]
	if !ok {
		queue = make(chan func(), d.queueSize)
		d.queues[companyID] = queue
		d.wg.Add(1)
		go d.worker(companyID, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- task:
	case <-d.ctx.Done():
	}
}

// Wait 等待所有工作 goroutine 退出（上下文取消后调用）
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// worker 单个公司的工作循环（按入队顺序执行）
func (d *Dispatcher) worker(companyID string, queue chan func()) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("Company worker stopped",
				zap.String("company_id", companyID),
			)
			return
		case task := <-queue:
			task()
		}
	}
}
