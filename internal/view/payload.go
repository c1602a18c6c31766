package view

import (
	"encoding/json"
	"strings"

	"frc-research/internal/models"
	"frc-research/internal/reconcile"
)

// chartPayload unwraps a chart response to what the chart transformer accepts.
// Some backends send chart_json as an encoded JSON string.
func (l *Loader) chartPayload(raw any) any {
	switch x := raw.(type) {
	case nil, []any:
		return raw
	case string:
		return decodeEmbedded(x)
	case map[string]any:
		if _, isFigure := x["layout"]; isFigure {
			return raw
		}
		if v, ok := l.table.Resolve(reconcile.KindChart, "response", x); ok {
			if s, isString := v.(string); isString {
				return decodeEmbedded(s)
			}
			return v
		}
	}
	return raw
}

func decodeEmbedded(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// parseAnalysis maps an analysis payload onto models.Analysis. It returns nil when
// there is no summary or highlight to show.
func (l *Loader) parseAnalysis(raw any) *models.Analysis {
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if decoded, isJSON := decodeEmbedded(s).(map[string]any); isJSON {
			raw = decoded
		} else {
			return &models.Analysis{Kind: models.AnalysisUnknownSrc, Summary: strings.TrimSpace(s)}
		}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := l.table.Resolve(reconcile.KindAnalysis, "response", obj); ok {
		if m, isMap := inner.(map[string]any); isMap {
			obj = m
		}
	}

	t := l.table
	a := &models.Analysis{Raw: obj}
	a.Summary, _ = t.String(reconcile.KindAnalysis, "summary", obj)
	if items, ok := reconcile.Slice(obj, t.Paths(reconcile.KindAnalysis, "highlights")); ok {
		for _, item := range items {
			if s, ok := reconcile.AsString(item); ok && strings.TrimSpace(s) != "" {
				a.Highlights = append(a.Highlights, s)
			}
		}
	}
	if a.Summary == "" && len(a.Highlights) == 0 {
		return nil
	}
	a.GeneratedAt, _ = reconcile.Time(obj, t.Paths(reconcile.KindAnalysis, "generated_at"))

	kind, _ := t.String(reconcile.KindAnalysis, "kind", obj)
	a.Kind = analysisKind(kind)
	return a
}

func analysisKind(s string) models.AnalysisKind {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "bloomberg"), strings.Contains(s, "readership"):
		return models.AnalysisBloomberg
	case s == "", s == "ai", strings.HasPrefix(s, "ai_"), strings.HasPrefix(s, "ai-"), strings.Contains(s, "llm"):
		return models.AnalysisAI
	}
	return models.AnalysisUnknownSrc
}
