package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Fetching repositories...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Fetching repositories...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("Indexed %d repositories", 3) }, "✅ Indexed 3 repositories\n"},
		{"warning", func(w *Writer) { w.Warningf("%d without docs", 2) }, "⚠️  2 without docs\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "timeout") }, "❌ failed: timeout\n"},
		{"statusf", func(w *Writer) { w.Statusf("📦", "%s", "cache") }, "📦 cache\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_JSON_Indents(t *testing.T) {
	// Given: a writer
	buf := &bytes.Buffer{}

	// When: encoding a value
	require.NoError(t, New(buf).JSON(map[string]int{"count": 2}))

	// Then: output is indented and valid
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
}

func TestWriter_TextAndNewline(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Text("raw")
	w.Newline()

	assert.Equal(t, "raw\n", buf.String())
}
