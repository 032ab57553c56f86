package infra

import (
	"context"
	"errors"
	"sync"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// ErrSimulatedFailure é devolvido pelo MemoryProvider enquanto FailFirst > 0.
var ErrSimulatedFailure = errors.New("simulated provider failure")

// MemoryProvider guarda as notificações entregues. FailFirst faz as primeiras
// N chamadas falharem.
type MemoryProvider struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	delivered []domain.Notification
	ids       []string
}

func NewMemoryProvider(failFirst int) *MemoryProvider {
	return &MemoryProvider{failFirst: failFirst}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) Deliver(ctx context.Context, n domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.failFirst {
		return ErrSimulatedFailure
	}
	p.delivered = append(p.delivered, n)
	p.ids = append(p.ids, domain.DispatchID(ctx))
	return nil
}

// Calls conta todas as chamadas, inclusive as que falharam.
func (p *MemoryProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MemoryProvider) Delivered() []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Notification, len(p.delivered))
	copy(out, p.delivered)
	return out
}

// DispatchIDs devolve o id de cada entrega bem-sucedida, na ordem.
func (p *MemoryProvider) DispatchIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}
