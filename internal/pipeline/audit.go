package pipeline

import (
	"time"

	"go.uber.org/zap"

	"groupwatch/internal"
)

func newReport(traceID string, started time.Time) internal.AuditReport {
	return internal.AuditReport{
		TraceID:    traceID,
		StartedAt:  started,
		Sources:    []internal.SourceAudit{},
		ByType:     map[string]int{},
		ByRisk:     map[string]int{},
		ByCategory: map[string]int{},
		ByPlatform: map[string]int{},
	}
}

func countOrigin(a *internal.SourceAudit, origin internal.NameOrigin) {
	switch origin {
	case internal.NameExplicit:
		a.Explicit++
	case internal.NameFromURL:
		a.Derived++
	case internal.NameSynthetic:
		a.Synthetic++
	}
}

// tally fills the aggregate counters from per-source audits and the final
// deduplicated group set.
func tally(report *internal.AuditReport, groups []internal.CanonicalGroup, intents []internal.UpsertIntent) {
	totals := internal.SourceAudit{Source: "TOTAL", Available: true}
	for _, s := range report.Sources {
		totals.RowsRead += s.RowsRead
		totals.Explicit += s.Explicit
		totals.Derived += s.Derived
		totals.Synthetic += s.Synthetic
		totals.Skipped += s.Skipped
		totals.Merged += s.Merged
		if !s.Available {
			totals.Available = false
		}
	}
	report.Totals = totals

	for _, g := range groups {
		report.ByType[string(g.Type)]++
		report.ByRisk[string(g.RiskLevel)]++
		report.ByCategory[g.Category]++
		for _, p := range g.Platforms {
			report.ByPlatform[string(p)]++
		}
	}
	for _, in := range intents {
		switch in.Op {
		case internal.OpInsert:
			report.PlanInsert++
		case internal.OpSkip:
			report.PlanSkip++
		}
	}
}

func logReport(report internal.AuditReport) {
	for _, s := range report.Sources {
		fields := []zap.Field{
			zap.String("trace_id", report.TraceID),
			zap.String("source", s.Source),
			zap.Bool("available", s.Available),
			zap.Int("rows_read", s.RowsRead),
			zap.Int("explicit", s.Explicit),
			zap.Int("derived", s.Derived),
			zap.Int("synthetic", s.Synthetic),
			zap.Int("skipped", s.Skipped),
			zap.Int("merged", s.Merged),
		}
		if s.Error != "" {
			fields = append(fields, zap.String("error", s.Error))
		}
		zap.L().Info("source audit", fields...)
	}

	fields := []zap.Field{
		zap.String("trace_id", report.TraceID),
		zap.Duration("duration", report.Duration),
		zap.Int("rows_read", report.Totals.RowsRead),
		zap.Int("explicit", report.Totals.Explicit),
		zap.Int("derived", report.Totals.Derived),
		zap.Int("synthetic", report.Totals.Synthetic),
		zap.Int("skipped", report.Totals.Skipped),
		zap.Int("plan_insert", report.PlanInsert),
		zap.Int("plan_skip", report.PlanSkip),
		zap.Any("by_type", report.ByType),
		zap.Any("by_risk", report.ByRisk),
		zap.Any("by_platform", report.ByPlatform),
	}
	if report.Apply != nil {
		fields = append(fields,
			zap.Int("inserted", report.Apply.Inserted),
			zap.Int("skipped_existing", report.Apply.Skipped),
			zap.Int("write_failures", len(report.Apply.Failures)),
		)
	}
	zap.L().Info("import finished", fields...)
}
