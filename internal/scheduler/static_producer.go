package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/toolmesh/gateway/internal/registry"
)

// StaticProducer reads catalog entries from a directory of JSON files,
// one entry per file. It is the scheduler's stand-in for the real
// source scrapers (Docker Hub, mcpservers.org, the official MCP
// registry, curated "awesome" lists), which are out of scope here.
type StaticProducer struct {
	dir string
}

// NewStaticProducer returns a producer that scans dir for *.json files.
func NewStaticProducer(dir string) *StaticProducer {
	return &StaticProducer{dir: dir}
}

// Produce scans the configured directory and parses each JSON file as a
// single entry.
func (p *StaticProducer) Produce(ctx context.Context) ([]registry.Entry, error) {
	files, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan source directory %s: %w", p.dir, err)
	}

	var entries []registry.Entry
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}
		var e registry.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name(), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
