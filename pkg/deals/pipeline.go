package deals

import (
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
)

// PipelineMetrics summarizes the full deal set for the sales dashboard
type PipelineMetrics struct {
	Total          int            `json:"total"`
	ByStage        map[Stage]int  `json:"by_stage"`
	Open           int            `json:"open"`
	Won            int            `json:"won"`
	Lost           int            `json:"lost"`
	Churned        int            `json:"churned"`
	ConversionRate float64        `json:"conversion_rate"`
	OpenValue      []money.Amount `json:"open_value"`
	WonValue       []money.Amount `json:"won_value"`
	Overdue        int            `json:"overdue"`
}

// ComputePipeline derives dashboard metrics from a snapshot. Conversion rate
// is won/(won+lost) and 0 when nothing closed yet. Values are grouped per currency.
func ComputePipeline(deals []Deal, pass lifecycle.Pass) PipelineMetrics {
	m := PipelineMetrics{ByStage: make(map[Stage]int, len(Stages))}
	for _, s := range Stages {
		m.ByStage[s] = 0
	}

	open := money.Totals{}
	won := money.Totals{}
	for _, d := range deals {
		m.Total++
		m.ByStage[d.Stage]++

		switch {
		case d.Stage.IsOpen():
			m.Open++
			open.Add(d.EstimatedValue)
			if d.IsOverdue(pass.Today) {
				m.Overdue++
			}
		case d.Stage == StageWon:
			m.Won++
			won.Add(d.EstimatedValue)
		case d.Stage == StageLost:
			m.Lost++
		case d.Stage == StageChurned:
			m.Churned++
		}
	}

	if closed := m.Won + m.Lost; closed > 0 {
		m.ConversionRate = float64(m.Won) / float64(closed)
	}
	m.OpenValue = open.Amounts()
	m.WonValue = won.Amounts()
	return m
}
