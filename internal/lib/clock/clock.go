// Package clock абстрагирует получение текущего времени, чтобы бизнес-логика
// была детерминированной в тестах.
package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Real возвращает реальное текущее время в UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Stub возвращает фиксированное время. Безопасен для конкурентного использования.
type Stub struct {
	mu  sync.Mutex
	now time.Time
}

// NewStub создаёт Stub, установленный на t.
func NewStub(t time.Time) *Stub {
	return &Stub{now: t}
}

func (c *Stub) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперёд на d.
func (c *Stub) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set устанавливает часы на t.
func (c *Stub) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
