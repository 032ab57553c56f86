package guestauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidToken cobre formato quebrado, assinatura errada e payload ilegível.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken é devolvido para tokens autênticos cujo exp já passou.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingSecret indica configuração faltando, não um token ruim.
	ErrMissingSecret = errors.New("token secret is required")
)

var encoding = base64.RawURLEncoding

// Payload é a identidade carregada pelo token.
// Exp é unix em segundos; nil significa sem expiração.
type Payload struct {
	EventSlug string `json:"eventSlug"`
	GuestID   string `json:"guestId"`
	Exp       *int64 `json:"exp,omitempty"`
}

// ExpiresAt devolve o exp como time.Time (zero quando não há exp).
func (p Payload) ExpiresAt() time.Time {
	if p.Exp == nil {
		return time.Time{}
	}
	return time.Unix(*p.Exp, 0)
}

// WithTTL devolve uma cópia com exp = now + ttl.
func (p Payload) WithTTL(now time.Time, ttl time.Duration) Payload {
	exp := now.Add(ttl).Unix()
	p.Exp = &exp
	return p
}

// Codec emite e verifica tokens. O valor zero é utilizável.
type Codec struct {
	// Now permite fixar o relógio nos testes.
	Now func() time.Time
}

func (c Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Issue assina o payload com o segredo.
func (c Codec) Issue(p Payload, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	encoded := encoding.EncodeToString(raw)
	return encoded + "." + sign(encoded, secret), nil
}

// Verify confere a assinatura e só então decodifica o payload.
// Não tem efeito colateral: verificar o mesmo token N vezes dá o mesmo resultado.
func (c Codec) Verify(token, secret string) (Payload, error) {
	if secret == "" {
		return Payload{}, ErrMissingSecret
	}
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" || strings.Contains(sig, ".") {
		return Payload{}, ErrInvalidToken
	}

	if !hmac.Equal([]byte(sig), []byte(sign(encoded, secret))) {
		return Payload{}, ErrInvalidToken
	}

	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidToken
	}

	if p.Exp != nil && c.now().Unix() > *p.Exp {
		return Payload{}, ErrExpiredToken
	}
	return p, nil
}

func sign(encoded, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encoded))
	return encoding.EncodeToString(mac.Sum(nil))
}
