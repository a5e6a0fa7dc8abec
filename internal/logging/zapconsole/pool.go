package zapconsole

import "sync"

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](fn func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return fn()
			},
		},
	}
}

func (p *Pool[T]) Get() T {
	value, _ := p.pool.Get().(T)
	return value
}

func (p *Pool[T]) Put(x T) {
	p.pool.Put(x)
}
