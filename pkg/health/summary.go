package health

import "sort"

// Summary is the portfolio view of client health
type Summary struct {
	Total        int          `json:"total"`
	ByRisk       map[Risk]int `json:"by_risk"`
	AtRisk       int          `json:"at_risk"`
	AverageScore float64      `json:"average_score"`
	Improving    int          `json:"improving"`
	Declining    int          `json:"declining"`
	WeakestAreas map[Area]int `json:"weakest_areas"`
}

// Summarize counts clients per risk level and trend. The average is 0 for
// an empty portfolio.
func Summarize(items []ClientHealth) Summary {
	s := Summary{
		ByRisk:       make(map[Risk]int, len(Risks)),
		WeakestAreas: make(map[Area]int, len(Areas)),
	}
	for _, r := range Risks {
		s.ByRisk[r] = 0
	}
	for _, a := range Areas {
		s.WeakestAreas[a] = 0
	}

	total := 0
	for _, c := range items {
		s.Total++
		total += c.OverallScore
		s.ByRisk[c.RiskLevel]++
		if c.RiskLevel.AtRisk() {
			s.AtRisk++
			s.WeakestAreas[c.WeakestArea]++
		}
		switch c.Trend {
		case TrendImproving:
			s.Improving++
		case TrendDeclining:
			s.Declining++
		}
	}
	if s.Total > 0 {
		s.AverageScore = float64(total) / float64(s.Total)
	}
	return s
}

// AtRiskClients returns HIGH and CRITICAL clients, worst score first, ties
// broken by organization ID
func AtRiskClients(items []ClientHealth) []ClientHealth {
	out := make([]ClientHealth, 0, len(items))
	for _, c := range items {
		if c.RiskLevel.AtRisk() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OverallScore != out[j].OverallScore {
			return out[i].OverallScore < out[j].OverallScore
		}
		return out[i].OrganizationID < out[j].OrganizationID
	})
	return out
}
