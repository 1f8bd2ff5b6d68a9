package wsconn

import (
	"context"
	"sync"

	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

// Pool manages a set of independent managed connections keyed by name.
// Each connection reconnects on its own; one endpoint going down does
// not affect the others.
type Pool struct {
	logger logger.LoggerInterface

	clients map[string]*Client
	mu      sync.RWMutex
}

// NewPool creates an empty connection pool.
func NewPool(log logger.LoggerInterface) *Pool {
	return &Pool{
		logger:  log,
		clients: make(map[string]*Client),
	}
}

// Add creates a client for cfg and registers it under cfg.Name.
func (p *Pool) Add(cfg Config) (*Client, error) {
	c, err := New(cfg, p.logger)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.clients[cfg.Name]; exists {
		return nil, apperror.New(apperror.CodeInvalidState,
			apperror.WithMessage("wsconn: connection already registered"),
			apperror.WithContext("connection", cfg.Name))
	}
	p.clients[cfg.Name] = c
	return c, nil
}

// Get returns the client registered under name, or nil.
func (p *Pool) Get(name string) *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[name]
}

// ConnectAll dials every registered connection with retry. The first
// error aborts the walk; already-dialed connections stay up.
func (p *Pool) ConnectAll(ctx context.Context) error {
	p.mu.RLock()
	clients := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.RUnlock()

	for _, c := range clients {
		if err := c.ConnectWithRetry(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll shuts down every connection in the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, c := range p.clients {
		if err := c.Close(); err != nil {
			p.logger.Warn(context.Background(), "close failed",
				"connection", name, "error", err)
		}
	}
}

// Len returns the number of registered connections.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Stats returns per-connection counter snapshots keyed by name.
func (p *Pool) Stats() map[string]Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Stats, len(p.clients))
	for name, c := range p.clients {
		out[name] = c.Stats()
	}
	return out
}
