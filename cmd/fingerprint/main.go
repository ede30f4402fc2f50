// Command fingerprint is a thin CLI wrapper around the detection core:
// it fetches one URL, hands the response to the core, and prints the
// resulting technologies as JSON. Fetching, flag parsing, and output
// formatting live here deliberately -- the core itself never performs
// network I/O.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/corefp/fingerprint/internal/loader"
	"github.com/corefp/fingerprint/internal/rules"
	"github.com/corefp/fingerprint/internal/signals"
	"github.com/corefp/fingerprint/pkg/fingerprint"
)

type output struct {
	Technologies []fingerprint.Technology `json:"technologies"`
}

func main() {
	target := flag.String("url", "", "URL to fingerprint")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	rulesDir := flag.String("rules-dir", "", "optional directory of additional rule shards")
	withExtra := flag.Bool("extra-signals", false, "also collect dns/cert-issuer/robots.txt signals")
	lintOnly := flag.Bool("lint-rules", false, "compile every loaded pattern and report failures, then exit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sources := []loader.Source{loader.EmbeddedSource{}}
	if *rulesDir != "" {
		sources = append(sources, loader.DirSource{Path: *rulesDir})
	}

	if *lintOnly {
		lib, err := loader.Load(ctx, zerolog.Nop(), loader.Config{RulesDir: *rulesDir}, sources...)
		if err != nil {
			log.Fatalf("fingerprint: load: %v", err)
		}
		if err := rules.Lint(lib); err != nil {
			log.Fatalf("fingerprint: lint: %v", err)
		}
		return
	}

	if *target == "" {
		log.Fatal("fingerprint: -url is required")
	}

	det := fingerprint.New()
	if err := det.Init(ctx, loader.Config{RulesDir: *rulesDir}, sources...); err != nil {
		log.Fatalf("fingerprint: init: %v", err)
	}

	headers, body, err := fetch(ctx, *target, *timeout)
	if err != nil {
		log.Fatalf("fingerprint: fetch: %v", err)
	}

	var extra *fingerprint.ExtraSignals
	if *withExtra {
		extra = collectExtra(ctx, *target)
	}

	techs, err := det.DetectFull(headers, []string{*target}, body, extra)
	if err != nil {
		log.Fatalf("fingerprint: detect: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Technologies: techs}); err != nil {
		log.Fatalf("fingerprint: encode: %v", err)
	}
}

// collectExtra gathers the extended-dimension signals for target's host.
// Best-effort: an unresolvable host just yields an empty ExtraSignals.
func collectExtra(ctx context.Context, target string) *fingerprint.ExtraSignals {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	res := signals.Collect(ctx, u.Hostname())
	return &fingerprint.ExtraSignals{
		DNSRecords: res.DNSRecords,
		CertIssuer: res.CertIssuer,
		RobotsTxt:  res.RobotsTxt,
	}
}

func fetch(ctx context.Context, target string, timeout time.Duration) (map[string][]string, []byte, error) {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp.Header, body, nil
}
