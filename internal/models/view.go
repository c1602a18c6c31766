package models

import "time"

// SectionState distinguishes why a section of the view has or lacks data.
type SectionState string

const (
	SectionOK          SectionState = "ok"          // data present
	SectionEmpty       SectionState = "empty"       // no data of this kind yet
	SectionUnavailable SectionState = "unavailable" // fetch failed, temporarily unavailable
)

// AnalysisKind identifies the flavour of a research analysis.
type AnalysisKind string

const (
	AnalysisAI         AnalysisKind = "ai"
	AnalysisBloomberg  AnalysisKind = "bloomberg_readership"
	AnalysisUnknownSrc AnalysisKind = "unknown"
)

// Analysis is an AI or Bloomberg readership analysis attached to a company.
type Analysis struct {
	Kind        AnalysisKind   `json:"kind"`
	Summary     string         `json:"summary"`
	Highlights  []string       `json:"highlights,omitempty"`
	GeneratedAt time.Time      `json:"generated_at,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// ReportCoverage holds the window stats anchored at a single report.
type ReportCoverage struct {
	ReportID string               `json:"report_id"`
	Stats    *CoverageWindowStats `json:"stats"`
	Gap      string               `json:"gap,omitempty"`
}

// Sections records the state of each optional part of the view.
type Sections struct {
	Chart    SectionState `json:"chart"`
	Metrics  SectionState `json:"metrics"`
	Analysis SectionState `json:"analysis"`
	Coverage SectionState `json:"coverage"`
}

// CompanyView is the assembled view model for one company page. ReportDates
// holds every known publication date, ascending, from metrics records and the
// company's report list.
type CompanyView struct {
	Company        CanonicalCompany      `json:"company"`
	Chart          *ChartSeries          `json:"chart"`
	Metrics        []MetricsRecord       `json:"metrics"`
	MetricsSource  string                `json:"metrics_source"`
	Analysis       *Analysis             `json:"analysis"`
	ReportDates    []time.Time           `json:"report_dates,omitempty"`
	Coverage       []CoverageWindowStats `json:"coverage,omitempty"`
	ReportCoverage []ReportCoverage      `json:"report_coverage,omitempty"`
	Sections       Sections              `json:"sections"`
	LoadedAt       time.Time             `json:"loaded_at"`
}
