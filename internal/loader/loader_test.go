package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	lib, err := Load(context.Background(), zerolog.Nop(), Config{})
	require.NoError(t, err)
	require.NotNil(t, lib)

	nginx, ok := lib.Technologies["nginx"]
	require.True(t, ok)
	assert.Contains(t, nginx.Categories, "Web servers")
	assert.NotEmpty(t, nginx.Patterns.Headers["server"])

	wp, ok := lib.Technologies["WordPress"]
	require.True(t, ok)
	require.Len(t, wp.Implies, 1)
	assert.Equal(t, "PHP", wp.Implies[0].TechID)
}

func TestLoadDirSourcePrecedence(t *testing.T) {
	dir := t.TempDir()
	// Lower-precedence override: a directory source re-defining nginx's
	// website, which must NOT beat the embedded (higher-precedence)
	// source's scalar metadata, but DOES contribute a new pattern.
	err := os.WriteFile(filepath.Join(dir, "extra.json"), []byte(`{
		"nginx": {
			"website": "https://example-mirror.invalid",
			"headers": { "X-Nginx-Extra": "present" }
		},
		"Brand New Tech": {
			"cats": [19],
			"html": ["Brand-New-Marker"]
		}
	}`), 0o644)
	require.NoError(t, err)

	lib, err := Load(context.Background(), zerolog.Nop(), Config{}, EmbeddedSource{}, DirSource{Path: dir})
	require.NoError(t, err)

	nginx := lib.Technologies["nginx"]
	require.NotNil(t, nginx)
	assert.Equal(t, "https://nginx.org", nginx.Website, "higher-precedence scalar must win")
	assert.NotEmpty(t, nginx.Patterns.Headers["x-nginx-extra"], "lower-precedence pattern must still be unioned in")

	brandNew := lib.Technologies["Brand New Tech"]
	require.NotNil(t, brandNew)
	assert.Contains(t, brandNew.Categories, "Miscellaneous")
}

func TestLoadMalformedJSONFailsWithSourceContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not valid json`), 0o644))

	_, err := Load(context.Background(), zerolog.Nop(), Config{}, DirSource{Path: dir})
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LoadErrParse, le.Kind)
}

func TestLoadNoSources(t *testing.T) {
	dir := t.TempDir() // empty directory, defines nothing
	_, err := Load(context.Background(), zerolog.Nop(), Config{}, DirSource{Path: dir})
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LoadErrNoSources, le.Kind)
}

func TestUnknownCategoryIDDropped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cats.json"), []byte(`{
		"Mystery App": { "cats": [9999] }
	}`), 0o644))

	lib, err := Load(context.Background(), zerolog.Nop(), Config{}, DirSource{Path: dir})
	require.NoError(t, err)
	tech := lib.Technologies["Mystery App"]
	require.NotNil(t, tech)
	assert.Empty(t, tech.Categories)
}

// implies/requires/excludes targets that name no technology in the
// merged set are dropped at load time, the same way an unknown category
// id is dropped in normalizeTech.
func TestUnknownImpliesTargetDroppedAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dangling.json"), []byte(`{
		"Lonely": {
			"html": ["Lonely-Marker"],
			"implies": ["Nonexistent Tech"],
			"requires": ["Also Nonexistent"],
			"excludes": ["Still Nonexistent"]
		}
	}`), 0o644))

	lib, err := Load(context.Background(), zerolog.Nop(), Config{}, DirSource{Path: dir})
	require.NoError(t, err)
	tech := lib.Technologies["Lonely"]
	require.NotNil(t, tech)
	assert.Empty(t, tech.Implies)
	assert.Empty(t, tech.Requires)
	assert.Empty(t, tech.Excludes)
}

// A forward reference to a technology defined in a different file of the
// same source must survive: reference validation runs after merging,
// not per-source.
func TestKnownCrossShardImpliesSurvive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{
		"Shard A": {
			"html": ["Shard-A-Marker"],
			"implies": ["Shard B"]
		}
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{
		"Shard B": {
			"html": ["Shard-B-Marker"]
		}
	}`), 0o644))

	lib, err := Load(context.Background(), zerolog.Nop(), Config{}, DirSource{Path: dir})
	require.NoError(t, err)
	a := lib.Technologies["Shard A"]
	require.NotNil(t, a)
	require.Len(t, a.Implies, 1)
	assert.Equal(t, "Shard B", a.Implies[0].TechID)
}
