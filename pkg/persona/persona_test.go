package persona_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-kaiwa/pkg/persona"
)

const table = `
[marui]
reference_id = "marui-v2"
prompt_path = "prompts/marui.txt"

[tsukuyomi]
Reference-ID = "tsukuyomi"
prompt_path = "/abs/tsukuyomi.txt"

[nanashi]
prompt_path = "prompts/nanashi.txt"
`

func writeTable(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "marui.txt"), []byte("\nあなたはまるいです。\n\n"), 0o644))
	path := filepath.Join(dir, "character.toml")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTable(t)
	tbl, err := persona.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"marui", "nanashi", "tsukuyomi"}, tbl.Names())

	p, err := tbl.Lookup("marui")
	require.NoError(t, err)
	assert.Equal(t, "marui", p.Name)
	assert.Equal(t, "marui-v2", p.Voice())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "prompts", "marui.txt"), p.PromptPath)

	p, err = tbl.Lookup("tsukuyomi")
	require.NoError(t, err)
	assert.Equal(t, "tsukuyomi", p.ReferenceID)
	assert.Equal(t, "/abs/tsukuyomi.txt", p.PromptPath)

	p, err = tbl.Lookup("nanashi")
	require.NoError(t, err)
	assert.Equal(t, "nanashi", p.Voice())

	_, err = tbl.Lookup("uzuki")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid toml", data: `[marui`},
		{name: "empty", data: ``},
		{name: "not a table", data: `marui = "x"`},
		{name: "missing prompt", data: "[marui]\nreference_id = \"m\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := persona.Parse([]byte(tt.data), "")
			assert.Error(t, err)
		})
	}

	_, err := persona.Parse(nil, "")
	assert.ErrorIs(t, err, persona.ErrEmptyTable)

	_, err = persona.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestPrompter(t *testing.T) {
	tbl, err := persona.Load(writeTable(t))
	require.NoError(t, err)

	pr := persona.NewPrompter()
	assert.Equal(t, "", pr.Current())

	marui, _ := tbl.Lookup("marui")
	require.NoError(t, pr.SetFromPersona(marui))
	assert.Equal(t, "あなたはまるいです。", pr.Current())

	nanashi, _ := tbl.Lookup("nanashi")
	err = pr.SetFromPersona(nanashi)
	assert.ErrorIs(t, err, persona.ErrPromptNotFound)
	assert.Equal(t, "あなたはまるいです。", pr.Current(), "prompt unchanged on error")

	pr.SetRaw("raw prompt")
	assert.Equal(t, "raw prompt", pr.Current())
}
