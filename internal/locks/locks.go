package locks

import (
	"sync"
)

// CompanyLocks 按公司ID的互斥锁集合
// 生命周期迁移（approve/reject）和遥测摄入共用同一把锁，
// 保证单公司可变状态的单写者约束
type CompanyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCompanyLocks 创建锁集合
func NewCompanyLocks() *CompanyLocks {
	return &CompanyLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock 获取指定公司的锁，返回解锁函数
func (l *CompanyLocks) Lock(companyID string) func() {
	l.mu.Lock()
	m, ok := l.locks[companyID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[companyID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
