// Package di provides a small dependency injection container with
// type-safe service tokens. Services are registered as values or lazy
// factories; factories run once and the result is memoized.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get resolves a service by name. It panics if the name is unknown;
	// wiring errors are programmer errors and should fail loudly at startup.
	Get(name string) any
	// Has reports whether a service is registered under name.
	Has(name string) bool
}

// Container is the write side: modules register their services here.
type Container interface {
	ServiceRegistry
	// Register stores a ready value under name.
	Register(name string, svc any)
	// RegisterFactory stores a lazy constructor under name. The factory
	// runs on first Get and its result is cached.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	value   any
	factory func(ServiceRegistry) any
	once    sync.Once
}

type container struct {
	mu       sync.RWMutex
	services map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{services: make(map[string]*entry)}
}

func (c *container) Register(name string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = &entry{value: svc}
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = &entry{factory: factory}
}

func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.services[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("di: service %q is not registered", name))
	}

	if e.factory != nil {
		e.once.Do(func() {
			e.value = e.factory(c)
		})
	}
	return e.value
}

func (c *container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[name]
	return ok
}

// Token is a typed handle for a service. The type parameter makes Get
// calls compile-time safe instead of relying on interface assertions.
type Token[T any] struct {
	name string
}

// NewToken creates a token with a unique service name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the underlying service name.
func (t Token[T]) Name() string { return t.name }

// RegisterToken registers a typed factory for the token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token to its typed service.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	svc, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return svc
}
