// Package logger configura o slog da aplicação e o Hub que leva registros de
// erro ao pipeline de alertas.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// Setup devolve um logger de texto em stdout já passando pelo Hub.
// Níveis aceitos: debug|info|warn|error|critical; qualquer outro vira info.
func Setup(level string) (*slog.Logger, *Hub) {
	return SetupWriter(os.Stdout, level)
}

func SetupWriter(w io.Writer, level string) (*slog.Logger, *Hub) {
	logLevel, err := domain.ParseLevel(level)
	if err != nil {
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: domain.ReplaceLevelAttr,
	})

	hub := NewHub(handler)
	return slog.New(hub), hub
}
