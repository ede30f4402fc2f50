package fingerprint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corefp/fingerprint/internal/loader"
)

func newEmbeddedDetector(t *testing.T) *Detector {
	t.Helper()
	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}))
	return d
}

func findTech(techs []Technology, name string) *Technology {
	for i := range techs {
		if techs[i].Name == name {
			return &techs[i]
		}
	}
	return nil
}

// nginx header match with version extraction.
func TestDetectFullNginxHeaderVersion(t *testing.T) {
	d := newEmbeddedDetector(t)
	headers := map[string][]string{"Server": {"nginx/1.18.0"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)

	nginx := findTech(techs, "nginx")
	require.NotNil(t, nginx)
	assert.Equal(t, "1.18.0", nginx.Version)
	assert.Equal(t, []string{"Web servers"}, nginx.Categories)
	assert.GreaterOrEqual(t, nginx.Confidence, 1)
}

// Apache and nginx both seen under the same multi-valued header; Apache's
// excludes entry must remove nginx from the final result.
func TestDetectFullApacheExcludesNginx(t *testing.T) {
	d := newEmbeddedDetector(t)
	headers := map[string][]string{"Server": {"nginx/1.18.0", "Apache/2.4.41"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)

	assert.Nil(t, findTech(techs, "nginx"))
	apache := findTech(techs, "Apache")
	require.NotNil(t, apache)
	assert.Equal(t, "2.4.41", apache.Version)
}

// WordPress meta generator match implies PHP with no direct match of its own.
func TestDetectFullWordPressImpliesPHP(t *testing.T) {
	d := newEmbeddedDetector(t)
	body := []byte(`<html><head><meta name="generator" content="WordPress 6.4"></head></html>`)
	techs, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)

	wp := findTech(techs, "WordPress")
	require.NotNil(t, wp)
	assert.Equal(t, "6.4", wp.Version)
	assert.Empty(t, wp.ImpliedBy)

	php := findTech(techs, "PHP")
	require.NotNil(t, php)
	assert.Equal(t, "WordPress", php.ImpliedBy)
	assert.Equal(t, []string{"Programming languages"}, php.Categories)
}

// jQuery scriptSrc match with version extraction; the version in this
// path is followed by '/', so the greedy [\d.]+ capture stops at "3.7.1".
func TestDetectFullJQueryScriptSrcVersion(t *testing.T) {
	d := newEmbeddedDetector(t)
	body := []byte(`<html><head><script src="/cdn/jquery-3.7.1/jquery.min.js"></script></head></html>`)
	techs, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)

	jq := findTech(techs, "jQuery")
	require.NotNil(t, jq)
	assert.Equal(t, "3.7.1", jq.Version)
}

// WP Plugin X requires WordPress; with WordPress unmet, the plugin never
// appears in the result even though its own scriptSrc pattern matched.
func TestDetectFullRequiresUnmetDropsResult(t *testing.T) {
	d := newEmbeddedDetector(t)
	body := []byte(`<html><head><script src="/wp-content/plugins/plugin-x-1.0.js"></script></head></html>`)
	techs, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)

	assert.Nil(t, findTech(techs, "WP Plugin X"))
}

// Two 60-confidence header patterns on the same technology sum to 120 but
// the public result clamps to 100.
func TestDetectFullConfidenceCapsAt100(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"Foo": {
			"headers": {
				"X-Foo": "foo\\;confidence:60",
				"X-Bar": "bar\\;confidence:60"
			}
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	headers := map[string][]string{"X-Foo": {"foo"}, "X-Bar": {"bar"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)

	foo := findTech(techs, "Foo")
	require.NotNil(t, foo)
	assert.Equal(t, 100, foo.Confidence)
}

// A confidence:0 pattern must never survive alone in the output.
func TestDetectFullZeroConfidenceNeverSurvivesAlone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"Ghost": {
			"headers": { "X-Ghost": "present\\;confidence:0" }
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	headers := map[string][]string{"X-Ghost": {"present"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, findTech(techs, "Ghost"))
}

// An A -> B -> A implies cycle must terminate and leave both techs present.
func TestDetectFullImpliesCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"A": {
			"headers": { "X-A": "present" },
			"implies": ["B"]
		},
		"B": {
			"implies": ["A"]
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	// propagateImplies applies each declared edge at most once, so an
	// A->B->A cycle terminates after one pass in each direction; this
	// call returning at all is the assertion.
	techs, err := d.DetectFull(map[string][]string{"X-A": {"present"}}, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, findTech(techs, "A"))
	require.NotNil(t, findTech(techs, "B"))
}

// Detection is deterministic: identical inputs produce identical output
// slices, same order, every call.
func TestDetectFullDeterministic(t *testing.T) {
	d := newEmbeddedDetector(t)
	headers := map[string][]string{"Server": {"nginx/1.18.0"}}
	first, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)
	second, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// Every surviving technology's confidence is clamped to [1, 100].
func TestDetectFullConfidenceBounds(t *testing.T) {
	d := newEmbeddedDetector(t)
	headers := map[string][]string{"Server": {"nginx/1.18.0", "Apache/2.4.41"}}
	body := []byte(`<html><head><meta name="generator" content="WordPress 6.4"></head></html>`)
	techs, err := d.DetectFull(headers, nil, body, nil)
	require.NoError(t, err)
	require.NotEmpty(t, techs)
	for _, tech := range techs {
		assert.GreaterOrEqual(t, tech.Confidence, 1)
		assert.LessOrEqual(t, tech.Confidence, 100)
	}
}

// implied_by always names a technology that is itself present in the
// result set.
func TestDetectFullImpliedByReferentialIntegrity(t *testing.T) {
	d := newEmbeddedDetector(t)
	body := []byte(`<html><head><meta name="generator" content="WordPress 6.4"></head></html>`)
	techs, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)
	for _, tech := range techs {
		if tech.ImpliedBy == "" {
			continue
		}
		assert.NotNil(t, findTech(techs, tech.ImpliedBy))
	}
}

// DetectLite reports the same direct and first-level-implied names as
// DetectFull, just without version/category detail.
func TestDetectLiteConsistentWithFull(t *testing.T) {
	d := newEmbeddedDetector(t)
	body := []byte(`<html><head><meta name="generator" content="WordPress 6.4"></head></html>`)

	full, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)
	lite, err := d.DetectLite(nil, nil, body, nil)
	require.NoError(t, err)

	fullNames := make(map[string]bool, len(full))
	for _, ft := range full {
		fullNames[ft.Name] = true
	}
	liteNames := make(map[string]bool, len(lite))
	for _, lt := range lite {
		liteNames[lt.Name] = true
	}
	assert.Equal(t, fullNames, liteNames)
}

// Empty input is a valid boundary case, not an error.
func TestDetectFullEmptyInput(t *testing.T) {
	d := newEmbeddedDetector(t)
	techs, err := d.DetectFull(map[string][]string{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, techs)
}

func TestDetectFullNotInitialized(t *testing.T) {
	d := New()
	_, err := d.DetectFull(nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotInitialized(err))
}

// Every header value is invalid UTF-8 and the body is empty: nothing
// usable remains, so the call surfaces DetectErrInvalidHeader.
func TestDetectFullInvalidHeaderRejectedWhenBodyEmpty(t *testing.T) {
	d := newEmbeddedDetector(t)
	bad := string([]byte{0xff, 0xfe})
	_, err := d.DetectFull(map[string][]string{"Server": {bad}}, nil, nil, nil)
	require.Error(t, err)
	var de *DetectError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, DetectErrInvalidHeader, de.Kind)
}

// One invalid value alongside a valid one under the same header just
// drops the bad value and still detects off the good one.
func TestDetectFullInvalidHeaderValueSkippedAmongValid(t *testing.T) {
	d := newEmbeddedDetector(t)
	bad := string([]byte{0xff, 0xfe})
	headers := map[string][]string{"Server": {bad, "nginx/1.18.0"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, findTech(techs, "nginx"))
}

// An invalid header value alongside a non-empty body still succeeds:
// the body alone is enough to avoid the "nothing usable" condition.
func TestDetectFullInvalidHeaderValueSkippedWithBody(t *testing.T) {
	d := newEmbeddedDetector(t)
	bad := string([]byte{0xff, 0xfe})
	headers := map[string][]string{"X-Junk": {bad}}
	body := []byte(`<html><head><meta name="generator" content="WordPress 6.4"></head></html>`)
	techs, err := d.DetectFull(headers, nil, body, nil)
	require.NoError(t, err)
	require.NotNil(t, findTech(techs, "WordPress"))
}

// A multi-valued header matching the same pattern from two values
// counts that pattern's confidence once, not twice.
func TestDetectFullMultiValuedHeaderCountsPatternOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"Foo": {
			"headers": { "X-Foo": "foo\\;confidence:60" }
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	headers := map[string][]string{"X-Foo": {"foo-one", "foo-two"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)

	foo := findTech(techs, "Foo")
	require.NotNil(t, foo)
	assert.Equal(t, 60, foo.Confidence)
}

// Two separate <script src> tags matching the same scriptSrc pattern
// count that pattern's confidence once, not twice.
func TestDetectFullMultipleScriptsSameTechCountsPatternOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"Bar": {
			"scriptSrc": "bar\\;confidence:60"
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	body := []byte(`<html><head><script src="/a/bar.js"></script><script src="/b/bar.js"></script></head></html>`)
	techs, err := d.DetectFull(nil, nil, body, nil)
	require.NoError(t, err)

	bar := findTech(techs, "Bar")
	require.NotNil(t, bar)
	assert.Equal(t, 60, bar.Confidence)
}

// A transitive requires chain (X requires Y, Y requires Z, Z defined but
// never matched) must fully cascade in one call: both X and Y are dropped.
func TestDetectFullTransitiveRequiresChainFullyResolved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"X": {
			"headers": { "X-X": "present" },
			"requires": ["Y"]
		},
		"Y": {
			"headers": { "X-Y": "present" },
			"requires": ["Z"]
		},
		"Z": {
			"headers": { "X-Z": "present" }
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	headers := map[string][]string{"X-X": {"present"}, "X-Y": {"present"}}
	techs, err := d.DetectFull(headers, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, findTech(techs, "X"))
	assert.Nil(t, findTech(techs, "Y"))
}

// A mutually-excluding pair, both directly matched, deterministically
// loses both members on every call.
func TestDetectFullMutualExcludeDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
		"M1": {
			"headers": { "X-M1": "present" },
			"excludes": ["M2"]
		},
		"M2": {
			"headers": { "X-M2": "present" },
			"excludes": ["M1"]
		}
	}`), 0o644))

	d := New()
	require.NoError(t, d.Init(context.Background(), loader.Config{}, loader.DirSource{Path: dir}))

	headers := map[string][]string{"X-M1": {"present"}, "X-M2": {"present"}}
	for i := 0; i < 10; i++ {
		techs, err := d.DetectFull(headers, nil, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, findTech(techs, "M1"))
		assert.Nil(t, findTech(techs, "M2"))
	}
}

// Concurrent DetectFull calls against one initialized Detector are race-free.
func TestDetectFullConcurrentCalls(t *testing.T) {
	d := newEmbeddedDetector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			headers := map[string][]string{"Server": {"nginx/1.18.0"}}
			_, err := d.DetectFull(headers, nil, nil, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
