package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGate = `X=obsidian
-=obsidian

XXXX
X..X
-..-
X*.X
XXXX
`

const brokenGate = `X=obsidian

XXXX
X..Q
XXXX
`

func writeGate(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestRunDirectory(t *testing.T) {
	dir := t.TempDir()
	writeGate(t, dir, "nether.gate", validGate)
	writeGate(t, dir, "broken.gate", brokenGate)
	writeGate(t, dir, "notes.txt", "не формат")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dir", dir}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	out := stdout.String()
	assert.Contains(t, out, "✅ nether")
	assert.Contains(t, out, "broken.gate:4:")
	assert.Contains(t, out, "1 форматов загружено, 1 с ошибками")
	assert.NotContains(t, out, "notes")
}

func TestRunFilesWithDump(t *testing.T) {
	dir := t.TempDir()
	path := writeGate(t, dir, "nether.gate", validGate)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dump", path}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "X*.X")
	assert.Contains(t, stdout.String(), "portal-open=")
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("без аргументов ожидался код 2, получен %d", code)
	}
	if code := run([]string{"-dir", t.TempDir(), "extra.gate"}, &stdout, &stderr); code != 2 {
		t.Errorf("-dir вместе с файлами: ожидался код 2, получен %d", code)
	}
	if code := run([]string{"-dir", filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr); code != 2 {
		t.Errorf("несуществующий каталог: ожидался код 2, получен %d", code)
	}
}
