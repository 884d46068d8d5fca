// Package storage holds the group store adapters. Groups are insert-only:
// no adapter updates or deletes a stored group.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"groupwatch/internal"
	"groupwatch/internal/config"
	"groupwatch/internal/pipeline"
)

// lookupChunk bounds the number of ids per existence query.
const lookupChunk = 500

// MetaLastRun holds the trace id of the last recorded run.
const MetaLastRun = "last_run_trace_id"

// MetaLastExport holds the path of the last groups export.
const MetaLastExport = "last_export_path"

type Store interface {
	pipeline.Store
	ListGroups(ctx context.Context) ([]internal.CanonicalGroup, error)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (*string, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the configured adapter and applies its schema.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// runRecord is the stored form of an audit report, split the way the runs
// table keeps it.
type runRecord struct {
	traceID string
	timings []byte
	counts  []byte
}

func encodeRun(report internal.AuditReport) (runRecord, error) {
	timings, err := json.Marshal(map[string]float64{
		"totalMs": float64(report.Duration) / float64(time.Millisecond),
	})
	if err != nil {
		return runRecord{}, eris.Wrap(err, "storage: encode run timings")
	}
	counts, err := json.Marshal(report)
	if err != nil {
		return runRecord{}, eris.Wrap(err, "storage: encode run counts")
	}
	return runRecord{traceID: report.TraceID, timings: timings, counts: counts}, nil
}

// groupRecord holds the JSON columns of a group.
type groupRecord struct {
	platforms []byte
	links     []byte
}

func encodeGroup(g internal.CanonicalGroup) (groupRecord, error) {
	platforms := g.Platforms
	if platforms == nil {
		platforms = []internal.Platform{}
	}
	p, err := json.Marshal(platforms)
	if err != nil {
		return groupRecord{}, eris.Wrapf(err, "storage: encode platforms of %s", g.ID)
	}
	links := g.SocialLinks
	if links == nil {
		links = map[internal.Platform]string{}
	}
	l, err := json.Marshal(links)
	if err != nil {
		return groupRecord{}, eris.Wrapf(err, "storage: encode links of %s", g.ID)
	}
	return groupRecord{platforms: p, links: l}, nil
}

func decodeGroupJSON(g *internal.CanonicalGroup, platforms, links []byte) error {
	if err := json.Unmarshal(platforms, &g.Platforms); err != nil {
		return eris.Wrapf(err, "storage: decode platforms of %s", g.ID)
	}
	if err := json.Unmarshal(links, &g.SocialLinks); err != nil {
		return eris.Wrapf(err, "storage: decode links of %s", g.ID)
	}
	return nil
}
