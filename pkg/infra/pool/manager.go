package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Manager 池管理器，管理多个命名池
type Manager struct {
	mu     sync.RWMutex
	pools  map[Type]*Pool
	closed bool
}

// NewManager 创建新的池管理器，configs 中的每一项注册为一个池
func NewManager(configs map[Type]*Config) (*Manager, error) {
	m := &Manager{pools: make(map[Type]*Pool)}
	for typ, cfg := range configs {
		if err := m.Register(typ, cfg); err != nil {
			m.ReleaseAll()
			return nil, err
		}
	}
	return m, nil
}

// Register 注册新池
func (m *Manager) Register(typ Type, config *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrPoolClosed
	}
	if _, exists := m.pools[typ]; exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, typ)
	}

	p, err := NewPool(string(typ), config)
	if err != nil {
		return err
	}
	m.pools[typ] = p
	return nil
}

// Get 获取指定类型的池
func (m *Manager) Get(typ Type) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	p, ok := m.pools[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, typ)
	}
	return p, nil
}

// Submit 提交任务到指定池
func (m *Manager) Submit(typ Type, task func()) error {
	p, err := m.Get(typ)
	if err != nil {
		return err
	}
	return p.Submit(task)
}

// SubmitWithContext 提交带上下文的任务到指定池
func (m *Manager) SubmitWithContext(ctx context.Context, typ Type, task func()) error {
	p, err := m.Get(typ)
	if err != nil {
		return err
	}
	return p.SubmitWithContext(ctx, task)
}

// Stats 返回所有池的统计信息，按名称排序
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReleaseAll 关闭所有池
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pools {
		p.Release()
	}
	m.pools = make(map[Type]*Pool)
	m.closed = true
}

// ReleaseAllTimeout 等待运行中的任务，最多 timeout
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for typ, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil {
			logger.Warnw("Worker pool release timeout", "pool", typ, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	m.pools = make(map[Type]*Pool)
	m.closed = true
	return firstErr
}
