package logger

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// Hub é um slog.Handler que escreve no handler de saída e, para registros de
// nível error ou acima, entrega um domain.Event a cada sink inscrito.
//
// Registros com o atributo domain.InternalAttrKey=true não são repassados.
type Hub struct {
	inner slog.Handler
	core  *hubCore

	attrs  []slog.Attr
	groups []string
	// internal fica true quando WithAttrs recebeu o marcador interno.
	internal bool
}

type hubCore struct {
	mu     sync.RWMutex
	nextID int
	sinks  map[int]domain.Sink
}

var _ slog.Handler = (*Hub)(nil)

func NewHub(inner slog.Handler) *Hub {
	return &Hub{
		inner: inner,
		core:  &hubCore{sinks: make(map[int]domain.Sink)},
	}
}

// Subscribe inscreve um sink e devolve a função que cancela a inscrição.
func (h *Hub) Subscribe(s domain.Sink) (unsubscribe func()) {
	c := h.core
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.sinks[id] = s
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.sinks, id)
			c.mu.Unlock()
		})
	}
}

func (h *Hub) snapshot() []domain.Sink {
	h.core.mu.RLock()
	defer h.core.mu.RUnlock()
	out := make([]domain.Sink, 0, len(h.core.sinks))
	for _, s := range h.core.sinks {
		out = append(out, s)
	}
	return out
}

func (h *Hub) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= slog.LevelError {
		return true
	}
	return h.inner.Enabled(ctx, l)
}

func (h *Hub) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if r.Level < slog.LevelError || h.internal {
		return err
	}

	sinks := h.snapshot()
	if len(sinks) == 0 {
		return err
	}

	fields := make(map[string]string)
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		flatten(fields, "", a)
	}
	internal := false
	r.Attrs(func(a slog.Attr) bool {
		if isInternal(a) {
			internal = true
			return false
		}
		flatten(fields, prefix, a)
		return true
	})
	if internal {
		return err
	}

	ev := domain.Event{
		Message: r.Message,
		Level:   r.Level,
		Time:    r.Time,
		Fields:  fields,
	}
	for _, s := range sinks {
		s.Consume(ctx, ev)
	}
	return err
}

func (h *Hub) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	c.inner = h.inner.WithAttrs(attrs)

	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if isInternal(a) {
			c.internal = true
			continue
		}
		if prefix != "" {
			a = slog.Attr{Key: prefix + "." + a.Key, Value: a.Value}
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *Hub) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.inner = h.inner.WithGroup(name)
	c.groups = append(c.groups, name)
	return c
}

func (h *Hub) clone() *Hub {
	return &Hub{
		inner:    h.inner,
		core:     h.core,
		attrs:    slices.Clip(h.attrs),
		groups:   slices.Clip(h.groups),
		internal: h.internal,
	}
}

func isInternal(a slog.Attr) bool {
	if a.Key != domain.InternalAttrKey {
		return false
	}
	v := a.Value.Resolve()
	return v.Kind() == slog.KindBool && v.Bool()
}

func flatten(dst map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			flatten(dst, key, ga)
		}
		return
	}
	if key == "" {
		return
	}
	dst[key] = v.String()
}
