package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/i18n"
)

const validDoc = `tagtree_version: 1.0.0
tree:
  force:
    $tag: "tagtree.dev:unit/quantity-1.1.0"
    value: 12
    unit: kN
  series:
    $tag: "tagtree.dev:core/time_series-1.0.0"
    timestamps: ["2024-01-01T00:00:00Z", "2024-01-01T00:00:01Z"]
    data: [1, 2]
    unit: m
  note: hello
`

const invalidDoc = `tagtree_version: 1.0.0
tree:
  series:
    $tag: "tagtree.dev:core/time_series-1.2.0"
    timestamps: ["2024-01-01T00:00:00Z", "2024-01-01T00:00:01Z", "2024-01-01T00:00:01Z", "2024-01-01T00:00:02Z"]
    values: [1, 2, 3, 4]
    unit: m
    interpolation: linear
  mystery:
    $tag: "tagtree.dev:unit/bogus-1.0.0"
    value: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidateValidDocument(t *testing.T) {
	code, out, errOut := runCLI("validate", writeFile(t, "ok.yaml", validDoc))
	assert.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "valid")
}

func TestValidateInvalidDocument(t *testing.T) {
	code, out, _ := runCLI("validate", writeFile(t, "bad.yaml", invalidDoc))
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, out, "/mystery: unknown tag (tagtree.dev:unit/bogus-1.0.0)")
	assert.Contains(t, out, "2 problem(s)")
}

func TestValidateReportsConversionProblems(t *testing.T) {
	doc := strings.Replace(invalidDoc, "  mystery:\n    $tag: \"tagtree.dev:unit/bogus-1.0.0\"\n    value: 1\n", "", 1)
	code, out, _ := runCLI("validate", "--format", "json", writeFile(t, "bad.yaml", doc))
	assert.Equal(t, exitInvalid, code)

	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "invalid", r.Status)
	require.Len(t, r.Problems, 1)
	assert.Equal(t, "/series/timestamps", r.Problems[0].Path)
	assert.Equal(t, tagtree.CodeMalformedNode, r.Problems[0].Code)
}

func TestValidateStrictStopsEarly(t *testing.T) {
	code, out, _ := runCLI("validate", "--strict", "--format", "json", writeFile(t, "bad.yaml", invalidDoc))
	assert.Equal(t, exitInvalid, code)
	var r jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Len(t, r.Problems, 1)
}

func TestValidateUsageErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"frobnicate"},
		{"validate"},
		{"validate", filepath.Join(t.TempDir(), "missing.yaml")},
		{"validate", writeFile(t, "doc.txt", validDoc)},
		{"validate", "--format", "xml", writeFile(t, "ok.yaml", validDoc)},
		{"validate", "--config", writeFile(t, "c.yaml", "colour: blue\n"), writeFile(t, "ok.yaml", validDoc)},
		{"validate", "--log-level", "loud", writeFile(t, "ok.yaml", validDoc)},
		{"validate", writeFile(t, "notdoc.yaml", "just: a mapping\n")},
	}
	for _, args := range cases {
		code, _, _ := runCLI(args...)
		assert.Equal(t, exitUsage, code, "%v", args)
	}
}

func TestValidateJapaneseMessages(t *testing.T) {
	code, out, _ := runCLI("validate", "--lang", "ja", writeFile(t, "bad.yaml", invalidDoc))
	t.Cleanup(func() { i18n.SetLanguage("en") })
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, out, "未知のタグです")
}

func TestValidateMetrics(t *testing.T) {
	code, _, errOut := runCLI("validate", "--metrics", writeFile(t, "ok.yaml", validDoc))
	assert.Equal(t, exitOK, code)
	assert.Contains(t, errOut, "tagtree_schema_loads_total")
	assert.Contains(t, errOut, "tagtree_conversions_total")
}

func TestConfigSchemaDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra", "thing-1.0.0.yaml"), []byte("type: object\n"), 0o644))
	cfgPath := filepath.Join(dir, "tagtree.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("schema_dirs:\n  - prefix: asdf://example.org/schemas/\n    dir: extra\nlog_level: error\n"), 0o644))

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extra"), cfg.SchemaDirs[0].Dir)

	code, out, _ := runCLI("schemas", "--config", cfgPath)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "asdf://example.org/schemas/thing-1.0.0\t")
	assert.Contains(t, out, "asdf://tagtree.dev/schemas/unit/quantity-1.1.0\t")
}

func TestConfigRejectsRemoteWithoutPrefixes(t *testing.T) {
	_, err := loadConfig(writeFile(t, "c.yaml", "remote:\n  enabled: true\n"))
	assert.Error(t, err)

	cfg, err := loadConfig(writeFile(t, "c.yaml", "remote:\n  enabled: true\n  prefixes: [\"https://schemas.example.org/\"]\n  timeout: 3s\n"))
	require.NoError(t, err)
	assert.Equal(t, "3s", cfg.Remote.Timeout.String())
}

func TestManifest(t *testing.T) {
	code, out, _ := runCLI("manifest")
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "%YAML 1.1\n---\n"))
	entries, err := tagtree.ParseManifestEntries([]byte(strings.TrimPrefix(out, "%YAML 1.1\n")))
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	p := filepath.Join(t.TempDir(), "manifest.yaml")
	code, _, _ = runCLI("manifest", "-o", p)
	require.Equal(t, exitOK, code)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestSchemas(t *testing.T) {
	code, out, _ := runCLI("schemas")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 13)
	for _, l := range lines {
		uri, digest, ok := strings.Cut(l, "\t")
		require.True(t, ok, l)
		assert.True(t, strings.HasPrefix(uri, "asdf://tagtree.dev/schemas/"), uri)
		assert.Len(t, digest, 64)
	}
}
