package internal

import (
	"strings"
	"time"
)

// RawRow is one data row of a source sheet, keyed by the header labels as
// they appear in that sheet. Ordinal is the 1-based physical row number.
type RawRow struct {
	Source  string
	Ordinal int
	Columns []string
	Values  map[string]string
}

// Get returns the raw cell for a column label. ok is false when the sheet has
// no such column.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Empty reports whether every cell in the row is blank.
func (r RawRow) Empty() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type NameOrigin string

const (
	NameExplicit  NameOrigin = "EXPLICIT"
	NameFromURL   NameOrigin = "DERIVED_FROM_URL"
	NameSynthetic NameOrigin = "SYNTHETIC_PLACEHOLDER"
)

// Rank orders origins by confidence; higher is better.
func (o NameOrigin) Rank() int {
	switch o {
	case NameExplicit:
		return 3
	case NameFromURL:
		return 2
	case NameSynthetic:
		return 1
	default:
		return 0
	}
}

type GroupType string

const (
	TypeReligious    GroupType = "RELIGIOUS"
	TypePolitical    GroupType = "POLITICAL"
	TypeSocial       GroupType = "SOCIAL"
	TypeProfessional GroupType = "PROFESSIONAL"
	TypeCultural     GroupType = "CULTURAL"
	TypeOther        GroupType = "OTHER"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

type GroupStatus string

const (
	StatusActive    GroupStatus = "ACTIVE"
	StatusInactive  GroupStatus = "INACTIVE"
	StatusMonitored GroupStatus = "MONITORED"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTelegram  Platform = "telegram"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformWebsite   Platform = "website"
)

type Contact struct {
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

// CanonicalGroup is the persisted group entity.
type CanonicalGroup struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	NameOrigin        NameOrigin          `json:"nameOrigin"`
	SourceSheet       string              `json:"sourceSheet"`
	SourceRow         int                 `json:"sourceRow"`
	MemberCount       int                 `json:"memberCount"`
	Platforms         []Platform          `json:"platforms"`
	SocialLinks       map[Platform]string `json:"socialLinks"`
	Contact           Contact             `json:"contact"`
	Location          *string             `json:"location,omitempty"`
	InfluencerRefs    *string             `json:"influencerRefs,omitempty"`
	Type              GroupType           `json:"type"`
	RiskLevel         RiskLevel           `json:"riskLevel"`
	Category          string              `json:"category"`
	MonitoringEnabled bool                `json:"monitoringEnabled"`
	Status            GroupStatus         `json:"status"`
}

type IntentOp string

const (
	OpInsert IntentOp = "INSERT"
	OpSkip   IntentOp = "SKIP"
)

// UpsertIntent is one planned write. There is deliberately no update or
// delete operation.
type UpsertIntent struct {
	Op    IntentOp
	ID    string
	Group CanonicalGroup
}

type WriteFailure struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

type SourceAudit struct {
	Source    string `json:"source"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
	RowsRead  int    `json:"rowsRead"`
	Explicit  int    `json:"explicit"`
	Derived   int    `json:"derived"`
	Synthetic int    `json:"synthetic"`
	Skipped   int    `json:"skipped"`
	Merged    int    `json:"merged"`
}

type ApplyResult struct {
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Failures []WriteFailure `json:"failures"`
}

type AuditReport struct {
	TraceID    string         `json:"traceId"`
	StartedAt  time.Time      `json:"startedAt"`
	Duration   time.Duration  `json:"duration"`
	Sources    []SourceAudit  `json:"sources"`
	Totals     SourceAudit    `json:"totals"`
	ByType     map[string]int `json:"byType"`
	ByRisk     map[string]int `json:"byRisk"`
	ByCategory map[string]int `json:"byCategory"`
	ByPlatform map[string]int `json:"byPlatform"`
	PlanInsert int            `json:"planInsert"`
	PlanSkip   int            `json:"planSkip"`
	Apply      *ApplyResult   `json:"apply,omitempty"`
}
