// Package site tem as rotas públicas do site de convites: leitura do convite
// pelo convidado e envio do formulário de contato.
//
// A persistência real fica fora deste serviço; aqui só há os contratos e
// implementações em memória.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrGuestNotFound: convidado inexistente para o evento.
var ErrGuestNotFound = errors.New("guest not found")

type Guest struct {
	EventSlug string `json:"eventSlug"`
	GuestID   string `json:"guestId"`
	Name      string `json:"name"`
	Seats     int    `json:"seats"`
}

type GuestDirectory interface {
	Lookup(ctx context.Context, eventSlug, guestID string) (Guest, error)
}

type Submission struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type SubmissionStore interface {
	Save(ctx context.Context, s Submission) error
}

// MemoryGuests guarda convidados por (evento, id).
type MemoryGuests struct {
	mu     sync.RWMutex
	guests map[string]Guest
}

func NewMemoryGuests(guests ...Guest) *MemoryGuests {
	m := &MemoryGuests{guests: make(map[string]Guest, len(guests))}
	for _, g := range guests {
		m.Put(g)
	}
	return m
}

func guestKey(eventSlug, guestID string) string {
	return strings.ToLower(eventSlug) + "/" + guestID
}

func (m *MemoryGuests) Put(g Guest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guests[guestKey(g.EventSlug, g.GuestID)] = g
}

func (m *MemoryGuests) Lookup(_ context.Context, eventSlug, guestID string) (Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guests[guestKey(eventSlug, guestID)]
	if !ok {
		return Guest{}, ErrGuestNotFound
	}
	return g, nil
}

// MemorySubmissions acumula os envios do formulário de contato.
type MemorySubmissions struct {
	mu    sync.Mutex
	items []Submission
}

func NewMemorySubmissions() *MemorySubmissions { return &MemorySubmissions{} }

func (m *MemorySubmissions) Save(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, s)
	return nil
}

func (m *MemorySubmissions) All() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.items))
	copy(out, m.items)
	return out
}

// LoadGuests lê uma lista JSON de convidados ([{"eventSlug":..,"guestId":..}]).
// Entradas sem evento ou sem id são erro.
func LoadGuests(r io.Reader) ([]Guest, error) {
	var guests []Guest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&guests); err != nil {
		return nil, fmt.Errorf("decode guests: %w", err)
	}
	for i, g := range guests {
		if strings.TrimSpace(g.EventSlug) == "" || strings.TrimSpace(g.GuestID) == "" {
			return nil, fmt.Errorf("guest %d: eventSlug and guestId are required", i)
		}
	}
	return guests, nil
}

// LoadGuestsFile abre path e chama LoadGuests.
func LoadGuestsFile(path string) ([]Guest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadGuests(f)
}
