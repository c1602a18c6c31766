// Package models provides domain models for the research data pipeline.
package models

import "strings"

// Currency codes used for price axes.
const (
	CurrencyUSD = "USD"
	CurrencyCAD = "CAD"
)

// CoverageStatus is the coverage state reported by the research API for a ticker.
type CoverageStatus string

const (
	StatusSuccess             CoverageStatus = "success"
	StatusCoveredNoStockData  CoverageStatus = "frc_covered_no_stock_data"
	StatusCoveredNoDigitalRpt CoverageStatus = "frc_covered_no_digital_reports"
	StatusUnknown             CoverageStatus = "unknown"
)

// ParseCoverageStatus maps a raw status string onto the closed set of statuses.
// Anything unrecognized becomes StatusUnknown.
func ParseCoverageStatus(s string) CoverageStatus {
	switch CoverageStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusCoveredNoStockData:
		return StatusCoveredNoStockData
	case StatusCoveredNoDigitalRpt:
		return StatusCoveredNoDigitalRpt
	default:
		return StatusUnknown
	}
}

// DataAvailability flags which secondary data kinds exist for a company.
type DataAvailability struct {
	HasChart      bool `json:"has_chart"`
	HasMetrics    bool `json:"has_metrics"`
	HasAIAnalysis bool `json:"has_ai_analysis"`
	HasReports    bool `json:"has_reports"`
}

// CanonicalCompany is the normalized company entity. It is built once per
// fetch cycle and not modified afterwards.
type CanonicalCompany struct {
	Ticker           string           `json:"ticker"`
	Name             string           `json:"name"`
	Exchange         string           `json:"exchange"`
	Currency         string           `json:"currency"`
	Sector           string           `json:"sector"`
	Industry         string           `json:"industry"`
	ReportsCount     int              `json:"reports_count"`
	Status           CoverageStatus   `json:"status"`
	DataAvailability DataAvailability `json:"data_availability"`
}

// canadianExchanges are listing venues whose prices are quoted in CAD.
var canadianExchanges = map[string]bool{
	"TSX":         true,
	"TSXV":        true,
	"TSX-V":       true,
	"TSX.V":       true,
	"TSX VENTURE": true,
	"CSE":         true,
	"CNSX":        true,
	"NEO":         true,
	"CBOE CA":     true,
	"CBOE CANADA": true,
}

// CurrencyForExchange returns CAD for Canadian venues and USD otherwise.
// Ticker suffixes (.TO, .V, .CN, .NE) also imply CAD.
func CurrencyForExchange(exchange, ticker string) string {
	if canadianExchanges[strings.ToUpper(strings.TrimSpace(exchange))] {
		return CurrencyCAD
	}
	t := strings.ToUpper(ticker)
	for _, suffix := range []string{".TO", ".V", ".CN", ".NE"} {
		if strings.HasSuffix(t, suffix) {
			return CurrencyCAD
		}
	}
	return CurrencyUSD
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
