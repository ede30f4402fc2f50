package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// RemoteSource fetches rule data over HTTPS, either a raw JSON shard
// (URL ending in .json) or a Wappalyzer browser-extension bundle (.xpi,
// a zip archive carrying technologies/*.json and categories.json) — the
// same shape the teacher's XPI-based fetch worked with. Responses are
// cached under Config.CachePath in a file named by the SHA-256 of the
// source URL; the file name does not depend on the response content, and
// a cached entry is reused without revalidation.
type RemoteSource struct {
	URL string
}

func (r RemoteSource) Name() string { return r.URL }

func (r RemoteSource) fetch(ctx context.Context, log zerolog.Logger, cfg Config) (*rawBundle, error) {
	body, err := r.fetchBytes(ctx, cfg)
	if err != nil {
		return nil, networkErr(r.URL, err)
	}

	if strings.HasSuffix(strings.ToLower(r.URL), ".xpi") {
		return decodeXPI(r.URL, body)
	}
	techs, err := decodeJSONShard(r.URL, body)
	if err != nil {
		return nil, err
	}
	bundle := newRawBundle()
	bundle.mergeTechnologies(techs)
	return bundle, nil
}

func (r RemoteSource) fetchBytes(ctx context.Context, cfg Config) ([]byte, error) {
	if cfg.CachePath != "" {
		if cached, ok := readCache(cfg.CachePath, r.URL); ok {
			return cached, nil
		}
	}

	client := &http.Client{Timeout: cfg.requestTimeout()}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, r.URL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if cfg.CachePath != "" {
		writeCache(cfg.CachePath, r.URL, body)
	}
	return body, nil
}

func cacheFileName(cachePath, sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return filepath.Join(cachePath, hex.EncodeToString(sum[:])+".cache")
}

func readCache(cachePath, sourceURL string) ([]byte, bool) {
	data, err := os.ReadFile(cacheFileName(cachePath, sourceURL))
	if err != nil {
		return nil, false
	}
	return data, true
}

func writeCache(cachePath, sourceURL string, data []byte) {
	_ = os.MkdirAll(cachePath, 0o755)
	_ = os.WriteFile(cacheFileName(cachePath, sourceURL), data, 0o644)
}

// decodeXPI extracts technologies/*.json and categories.json from an
// in-memory zip archive, merging every technologies shard it finds.
func decodeXPI(sourceName string, body []byte) (*rawBundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, parseErr(sourceName, "/", err)
	}

	bundle := newRawBundle()
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "technologies/") && strings.HasSuffix(f.Name, ".json"):
			rc, err := f.Open()
			if err != nil {
				return nil, ioErr(sourceName, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, ioErr(sourceName, err)
			}
			techs, derr := decodeJSONShard(sourceName+"/"+f.Name, data)
			if derr != nil {
				return nil, derr
			}
			bundle.mergeTechnologies(techs)
		case f.Name == "categories.json":
			rc, err := f.Open()
			if err != nil {
				return nil, ioErr(sourceName, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, ioErr(sourceName, err)
			}
			var cats map[string]rawCategory
			if err := json.Unmarshal(data, &cats); err != nil {
				return nil, parseErr(sourceName+"/categories.json", "/", err)
			}
			bundle.Categories = cats
		}
	}
	return bundle, nil
}
