package loader

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Source is one rule-loader input declared at a precedence rank (the
// order sources are passed to Load). Each source yields every
// technology/category it defines independently of the others; merging
// happens after all sources have loaded.
type Source interface {
	Name() string
	fetch(ctx context.Context, log zerolog.Logger, cfg Config) (*rawBundle, error)
}

// EmbeddedSource is the compiled-in shard data shipped with the module,
// the default and lowest-maintenance source — always safe to use with
// no network or filesystem access.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) fetch(_ context.Context, log zerolog.Logger, _ Config) (*rawBundle, error) {
	return loadFS(embeddedData, "data", "embedded", log)
}

// DirSource reads shard/YAML files from a directory on disk: JSON
// shards (`a.json`..`z.json`, `_.json`, or a single document) plus an
// optional `categories.json`, and/or `.yaml`/`.yml` files in the
// dialect described in SPEC_FULL.md §4.1.
type DirSource struct {
	Path string
}

func (d DirSource) Name() string { return "dir:" + d.Path }

func (d DirSource) fetch(_ context.Context, log zerolog.Logger, _ Config) (*rawBundle, error) {
	root := dirFS{d.Path}
	return loadFS(root, ".", d.Name(), log)
}

// dirFS adapts a plain OS directory to fs.FS so DirSource can share
// loadFS with EmbeddedSource's embed.FS.
type dirFS struct{ root string }

func (d dirFS) Open(name string) (fs.File, error) {
	return osOpen(filepath.Join(d.root, name))
}

// loadFS walks an fs.FS recursively from dir, decoding every *.json/
// *.yaml/*.yml file it finds at any depth as a technology shard, except
// that any file named "categories.json" is decoded as the category map.
func loadFS(fsys fs.FS, dir, sourceName string, log zerolog.Logger) (*rawBundle, error) {
	bundle := newRawBundle()

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return ioErr(sourceName, err)
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		data, rerr := fs.ReadFile(fsys, path)
		if rerr != nil {
			return ioErr(sourceName, rerr)
		}

		switch {
		case base == "categories.json":
			cats, derr := decodeJSONCategories(path, data)
			if derr != nil {
				return derr
			}
			for k, v := range cats {
				bundle.Categories[k] = v
			}
		case strings.HasSuffix(base, ".json"):
			techs, derr := decodeJSONShard(path, data)
			if derr != nil {
				return derr
			}
			bundle.mergeTechnologies(techs)
		case strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml"):
			techs, cats, derr := decodeYAMLDialect(path, data)
			if derr != nil {
				return derr
			}
			bundle.mergeTechnologies(techs)
			for k, v := range cats {
				bundle.Categories[k] = v
			}
		default:
			log.Debug().Str("source", sourceName).Str("file", path).Msg("skipping unrecognized file")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}
