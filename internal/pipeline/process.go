package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"groupwatch/internal"
	"groupwatch/internal/config"
	"groupwatch/internal/source"
)

// RunRecorder persists the audit report of a finished run.
type RunRecorder interface {
	InsertRun(ctx context.Context, report internal.AuditReport) error
}

// Store is the storage capability a run needs.
type Store interface {
	Lookup
	Writer
	RunRecorder
}

type Runner struct {
	sources    []source.Source
	classifier *Classifier
	store      Store
	workers    int
}

func NewRunner(sources []source.Source, classifier *Classifier, store Store, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{sources: sources, classifier: classifier, store: store, workers: workers}
}

// NewRunnerFromConfig wires sources and the classifier from configuration.
// A source whose reader cannot be built is kept and reported unavailable at
// run time.
func NewRunnerFromConfig(cfg *config.Config, store Store) (*Runner, error) {
	classifier, err := ClassifierFromConfig(cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	sources, err := SourcesFromConfig(cfg.Sources)
	if err != nil {
		return nil, err
	}
	return NewRunner(sources, classifier, store, cfg.Pipeline.Workers), nil
}

// SourcesFromConfig builds one reader per configured source.
func SourcesFromConfig(cfgs []config.SourceConfig) ([]source.Source, error) {
	out := make([]source.Source, 0, len(cfgs))
	for _, sc := range cfgs {
		src, err := source.New(sc)
		if eris.Is(err, source.ErrSourceUnavailable) {
			out = append(out, unavailableSource{name: sc.Name, err: err})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

type unavailableSource struct {
	name string
	err  error
}

func (u unavailableSource) Name() string             { return u.name }
func (u unavailableSource) Mapping() *source.Mapping { return nil }
func (u unavailableSource) Open(context.Context) (source.Rows, error) {
	return nil, u.err
}

type Options struct {
	// DryRun plans intents without applying them or recording the run.
	DryRun bool
}

type Result struct {
	Report  internal.AuditReport
	Groups  []internal.CanonicalGroup
	Intents []internal.UpsertIntent
}

// Run reads every source in order, builds and deduplicates groups, plans
// the writes and, unless DryRun, applies them. Unavailable sources and
// rejected writes end up in the report; the error return is for
// cancellation and for a failed existence check.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	report := newReport(uuid.NewString(), started)
	log := zap.L().With(zap.String("trace_id", report.TraceID))

	var all []internal.CanonicalGroup
	for _, src := range r.sources {
		groups, audit, err := r.readSource(ctx, src, log)
		if err != nil {
			return nil, err
		}
		report.Sources = append(report.Sources, audit)
		all = append(all, groups...)
	}

	groups, merged := Dedupe(all, r.classifier)
	for i := range report.Sources {
		report.Sources[i].Merged = merged[report.Sources[i].Source]
	}

	intents, err := Plan(ctx, r.store, groups)
	if err != nil {
		return nil, err
	}
	tally(&report, groups, intents)

	if !opts.DryRun {
		res, err := Apply(ctx, r.store, intents)
		if err != nil {
			return nil, eris.Wrap(err, "apply")
		}
		report.Apply = &res
	}
	report.Duration = time.Since(started)

	if !opts.DryRun {
		if err := r.store.InsertRun(ctx, report); err != nil {
			log.Warn("record run failed", zap.Error(err))
		}
	}
	logReport(report)

	return &Result{Report: report, Groups: groups, Intents: intents}, nil
}

// readSource drains one source and builds its groups. Rows are mapped in
// parallel; output keeps row order.
func (r *Runner) readSource(ctx context.Context, src source.Source, log *zap.Logger) ([]internal.CanonicalGroup, internal.SourceAudit, error) {
	audit := internal.SourceAudit{Source: src.Name(), Available: true}
	log = log.With(zap.String("source", src.Name()))

	rows, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, audit, ctx.Err()
		}
		log.Warn("source unavailable", zap.Error(err))
		return nil, internal.SourceAudit{Source: src.Name(), Error: err.Error()}, nil
	}
	defer rows.Close()

	var raw []internal.RawRow
	for rows.Next() {
		row := rows.Row()
		audit.RowsRead++
		if row.Empty() {
			audit.Skipped++
			log.Debug("empty row skipped", zap.Int("row", row.Ordinal))
			continue
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, audit, ctx.Err()
		}
		log.Warn("source read failed", zap.Error(err))
		return nil, internal.SourceAudit{Source: src.Name(), Error: err.Error()}, nil
	}

	cols := src.Mapping().Resolve(rows.Header())
	if len(cols.Columns(source.FieldName)) == 0 {
		log.Debug("no name column", zap.Strings("header", rows.Header()))
	}

	groups := make([]internal.CanonicalGroup, len(raw))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)
	for i, row := range raw {
		i, row := i, row
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			g, cl, signal := BuildGroup(row, cols, r.classifier)
			if !signal {
				log.Debug("row has no usable fields", zap.Int("row", row.Ordinal))
			}
			log.Debug("row classified",
				zap.Int("row", row.Ordinal),
				zap.String("type", string(cl.Type)),
				zap.String("type_rule", cl.TypeRule),
				zap.String("risk", string(cl.RiskLevel)),
				zap.String("risk_rule", cl.RiskRule),
			)
			groups[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, audit, err
	}

	for _, g := range groups {
		countOrigin(&audit, g.NameOrigin)
	}
	return groups, audit, nil
}
