package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	log.Info("visible", "key", "value")
	log.Error("bad thing")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, colorRed)
}

func TestColorHandlerMutationMessagesAreGreen(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil))

	log.Info("Relinked document", "doc_id", "d1")
	assert.Contains(t, buf.String(), colorGreen)
}

func TestColorHandlerWithGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil)).WithGroup("topology").With("k", 7)

	log.Info("computed neighbors")
	out := buf.String()
	assert.Contains(t, out, "topology.computed neighbors")
	assert.Contains(t, out, "k=7")
}
