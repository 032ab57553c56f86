package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelCritical fica acima de slog.LevelError; slog não tem nível crítico próprio.
const LevelCritical = slog.Level(12)

// LevelName devolve o nome canônico em maiúsculas, incluindo CRITICAL.
func LevelName(l slog.Level) string {
	if l >= LevelCritical {
		return "CRITICAL"
	}
	return l.String()
}

// ParseLevel aceita debug|info|warn|error|critical (sem diferenciar caixa).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical", "crit":
		return LevelCritical, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}

// ReplaceLevelAttr faz o handler de saída escrever CRITICAL em vez de ERROR+4.
func ReplaceLevelAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(l))
		}
	}
	return a
}
