package tasks

import (
	"Friday/backend/go/internal/models"
	"sort"
	"sync"
)

// Constructor 用共享依赖创建一个新的处理器实例。
type Constructor func(deps Deps) Handler

// Registry 将任务类型映射到构造函数。进程启动时创建一次，并显式传给调度器和意图管道。
type Registry struct {
	mu    sync.RWMutex
	ctors map[models.TaskType]Constructor
	deps  Deps
}

// NewRegistry 创建一个空注册表。
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		ctors: make(map[models.TaskType]Constructor),
		deps:  deps.withDefaults(),
	}
}

// NewDefaultRegistry 创建已注册记账、订阅和待办处理器的注册表。
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps)
	r.Register(models.TaskAccounting, func(d Deps) Handler { return NewAccounting(d) })
	r.Register(models.TaskSubscription, func(d Deps) Handler { return NewSubscription(d) })
	r.Register(models.TaskTodo, func(d Deps) Handler { return NewTodo(d) })
	return r
}

// Register 注册或替换一个任务类型。
func (r *Registry) Register(taskType models.TaskType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[taskType] = ctor
}

// CreateTask 返回一个新的处理器；类型未知时 ok 为 false，调用方不应重试。
func (r *Registry) CreateTask(taskType models.TaskType) (Handler, bool) {
	r.mu.RLock()
	ctor, ok := r.ctors[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(r.deps), true
}

// Types 返回已注册的类型，按名称排序。
func (r *Registry) Types() []models.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TaskType, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Infos 返回每个已注册类型的描述信息。
func (r *Registry) Infos() []Info {
	types := r.Types()
	out := make([]Info, 0, len(types))
	for _, t := range types {
		if h, ok := r.CreateTask(t); ok {
			out = append(out, h.Info())
		}
	}
	return out
}

// Deps 返回注册表持有的依赖（已填充默认值）。
func (r *Registry) Deps() Deps {
	return r.deps
}
