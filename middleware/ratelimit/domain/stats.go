package domain

import (
	"context"
	"time"
)

// StatsEvent é uma decisão do guard, registrada depois de cada request.
// Route é o prefixo da política ("contact", "invitation").
//
// Cuidado com cardinalidade: Key carrega o IP do cliente.
type StatsEvent struct {
	Key      Key
	Route    string
	Allowed  bool
	Bypassed bool

	At time.Time
}

// Counters soma decisões por resultado.
type Counters struct {
	Allowed  int64 `json:"allowed"`
	Denied   int64 `json:"denied"`
	Bypassed int64 `json:"bypassed"`
}

// Add conta um evento no campo certo. Bypass tem precedência sobre allowed.
func (c *Counters) Add(ev StatsEvent) {
	switch {
	case ev.Bypassed:
		c.Bypassed++
	case ev.Allowed:
		c.Allowed++
	default:
		c.Denied++
	}
}

// StatsSnapshot é a leitura agregada das estatísticas.
type StatsSnapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"byRoute"`
}

// StatsStore guarda as decisões. O guard trata erro como best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsReader é implementado pelos stores que sabem devolver o agregado.
type StatsReader interface {
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}
