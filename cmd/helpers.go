package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// newResult wraps a payload in the standard Result envelope.
func newResult(command, kind string, data interface{}, items int) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats:       model.ResultStats{Items: items},
	}
}

// commandContext returns a context cancelled by SIGINT/SIGTERM, so a long
// sync aborts its in-flight HTTP call instead of dying mid-write.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
