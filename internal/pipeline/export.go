package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"groupwatch/internal"
)

const (
	groupsSheet = "Groups"
	auditSheet  = "Audit"
	failSheet   = "Write Failures"
)

var groupHeaders = []string{
	"id", "name", "name_origin", "source_sheet", "source_row", "member_count",
	"platforms", "facebook", "instagram", "twitter", "youtube", "telegram", "whatsapp", "website",
	"phone", "email", "location", "influencers",
	"type", "risk_level", "category", "monitoring_enabled", "status",
}

// ExportGroupsToXLSX writes one row per group.
func ExportGroupsToXLSX(groups []internal.CanonicalGroup, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), groupsSheet); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	writeGroups(f, groupsSheet, groups)
	return save(f, outputPath)
}

// ExportReportToXLSX writes the audit report, the planned groups and any
// write failures of a run.
func ExportReportToXLSX(report internal.AuditReport, groups []internal.CanonicalGroup, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), auditSheet); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	writeAudit(f, auditSheet, report)

	if _, err := f.NewSheet(groupsSheet); err != nil {
		return eris.Wrap(err, "export: add groups sheet")
	}
	writeGroups(f, groupsSheet, groups)

	if report.Apply != nil && len(report.Apply.Failures) > 0 {
		if _, err := f.NewSheet(failSheet); err != nil {
			return eris.Wrap(err, "export: add failures sheet")
		}
		setRow(f, failSheet, 1, "id", "error")
		for i, wf := range report.Apply.Failures {
			setRow(f, failSheet, i+2, wf.ID, wf.Err)
		}
	}
	return save(f, outputPath)
}

func writeGroups(f *excelize.File, sheet string, groups []internal.CanonicalGroup) {
	headers := make([]any, len(groupHeaders))
	for i, h := range groupHeaders {
		headers[i] = h
	}
	setRow(f, sheet, 1, headers...)

	for i, g := range groups {
		platforms := make([]string, len(g.Platforms))
		for j, p := range g.Platforms {
			platforms[j] = string(p)
		}
		setRow(f, sheet, i+2,
			g.ID, g.Name, string(g.NameOrigin), g.SourceSheet, g.SourceRow, g.MemberCount,
			strings.Join(platforms, ", "),
			g.SocialLinks[internal.PlatformFacebook],
			g.SocialLinks[internal.PlatformInstagram],
			g.SocialLinks[internal.PlatformTwitter],
			g.SocialLinks[internal.PlatformYouTube],
			g.SocialLinks[internal.PlatformTelegram],
			g.SocialLinks[internal.PlatformWhatsApp],
			g.SocialLinks[internal.PlatformWebsite],
			derefString(g.Contact.Phone), derefString(g.Contact.Email),
			derefString(g.Location), derefString(g.InfluencerRefs),
			string(g.Type), string(g.RiskLevel), g.Category, g.MonitoringEnabled, string(g.Status),
		)
	}
}

func writeAudit(f *excelize.File, sheet string, report internal.AuditReport) {
	r := 1
	setRow(f, sheet, r, "trace_id", report.TraceID)
	r++
	setRow(f, sheet, r, "started_at", report.StartedAt.Format("2006-01-02 15:04:05"))
	r++
	setRow(f, sheet, r, "duration_ms", report.Duration.Milliseconds())
	r += 2

	setRow(f, sheet, r, "source", "available", "error", "rows_read", "explicit", "derived", "synthetic", "skipped", "merged")
	r++
	for _, s := range append(append([]internal.SourceAudit{}, report.Sources...), report.Totals) {
		setRow(f, sheet, r, s.Source, s.Available, s.Error, s.RowsRead, s.Explicit, s.Derived, s.Synthetic, s.Skipped, s.Merged)
		r++
	}
	r++

	setRow(f, sheet, r, "plan_insert", report.PlanInsert)
	r++
	setRow(f, sheet, r, "plan_skip", report.PlanSkip)
	r++
	if report.Apply != nil {
		setRow(f, sheet, r, "inserted", report.Apply.Inserted)
		r++
		setRow(f, sheet, r, "skipped_existing", report.Apply.Skipped)
		r++
		setRow(f, sheet, r, "write_failures", len(report.Apply.Failures))
		r++
	}
	r++

	for _, breakdown := range []struct {
		title  string
		counts map[string]int
	}{
		{"type", report.ByType},
		{"risk_level", report.ByRisk},
		{"category", report.ByCategory},
		{"platform", report.ByPlatform},
	} {
		setRow(f, sheet, r, breakdown.title, "count")
		r++
		keys := make([]string, 0, len(breakdown.counts))
		for k := range breakdown.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			setRow(f, sheet, r, k, breakdown.counts[k])
			r++
		}
		r++
	}
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", outputPath)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "export: save %s", outputPath)
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
