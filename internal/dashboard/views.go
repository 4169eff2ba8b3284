package dashboard

import (
	"sort"

	"github.com/shopspring/decimal"
)

// NoMatchNotice is shown when the filters leave no policy.
const NoMatchNotice = "No data available for the selected filters."

// TopAgentsLimit bounds the agent ranking.
const TopAgentsLimit = 10

var hundred = decimal.NewFromInt(100)

// KPIs are the headline figures of the filtered view.
type KPIs struct {
	TotalPolicies    int             `json:"total_policies"`
	WrittenPremium   decimal.Decimal `json:"written_premium"`
	CollectedPremium decimal.Decimal `json:"collected_premium"`
	// CollectionRate is collected over written premium in percent, one
	// decimal place; zero when nothing was written.
	CollectionRate decimal.Decimal `json:"collection_rate"`
}

// AgentPremium is one bar of the agent ranking.
type AgentPremium struct {
	Agent   string          `json:"agent"`
	Premium decimal.Decimal `json:"premium"`
}

// MonthPremium is one point of the monthly trend, Month as YYYY-MM.
type MonthPremium struct {
	Month   string          `json:"month"`
	Premium decimal.Decimal `json:"premium"`
}

// StatusCount is one slice of the status distribution.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// AgentCommission is one point of the written vs collected scatter.
type AgentCommission struct {
	Agent     string          `json:"agent"`
	Written   decimal.Decimal `json:"written"`
	Collected decimal.Decimal `json:"collected"`
}

// ComputeKPIs sums the filtered rows.
func ComputeKPIs(rows []PolicyMetric) KPIs {
	k := KPIs{TotalPolicies: len(rows)}
	for _, m := range rows {
		k.WrittenPremium = k.WrittenPremium.Add(m.WrittenPremium)
		k.CollectedPremium = k.CollectedPremium.Add(m.CollectedPremium)
	}
	if k.WrittenPremium.IsPositive() {
		k.CollectionRate = k.CollectedPremium.Mul(hundred).Div(k.WrittenPremium).Round(1)
	}
	return k
}

// TopAgents ranks agents by written premium, highest first, ties by name.
// Rows without an agent label are left out.
func TopAgents(rows []PolicyMetric, n int) []AgentPremium {
	sums := map[string]decimal.Decimal{}
	for _, m := range rows {
		if a := m.Agent(); a != "" {
			sums[a] = sums[a].Add(m.WrittenPremium)
		}
	}
	out := make([]AgentPremium, 0, len(sums))
	for a, p := range sums {
		out = append(out, AgentPremium{Agent: a, Premium: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Premium.Cmp(out[j].Premium); c != 0 {
			return c > 0
		}
		return out[i].Agent < out[j].Agent
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MonthlyTrend sums written premium per inception month, oldest first.
func MonthlyTrend(rows []PolicyMetric) []MonthPremium {
	sums := map[string]decimal.Decimal{}
	for _, m := range rows {
		if m.InceptionDate.IsZero() {
			continue
		}
		k := m.InceptionDate.Format("2006-01")
		sums[k] = sums[k].Add(m.WrittenPremium)
	}
	out := make([]MonthPremium, 0, len(sums))
	for k, p := range sums {
		out = append(out, MonthPremium{Month: k, Premium: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// StatusDistribution counts policies per status, most frequent first.
func StatusDistribution(rows []PolicyMetric) []StatusCount {
	counts := map[string]int{}
	for _, m := range rows {
		counts[m.Status]++
	}
	out := make([]StatusCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, StatusCount{Status: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// CommissionByAgent sums written and collected commission per agent,
// ordered by agent.
func CommissionByAgent(rows []PolicyMetric) []AgentCommission {
	idx := map[string]int{}
	var out []AgentCommission
	for _, m := range rows {
		a := m.Agent()
		if a == "" {
			continue
		}
		i, ok := idx[a]
		if !ok {
			i = len(out)
			idx[a] = i
			out = append(out, AgentCommission{Agent: a})
		}
		out[i].Written = out[i].Written.Add(m.WrittenCommission)
		out[i].Collected = out[i].Collected.Add(m.CollectedCommission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Dashboard is every view of one filtered selection.
type Dashboard struct {
	Notice       string            `json:"notice,omitempty"`
	KPIs         KPIs              `json:"kpis"`
	TopAgents    []AgentPremium    `json:"top_agents"`
	MonthlyTrend []MonthPremium    `json:"monthly_trend"`
	Statuses     []StatusCount     `json:"status_distribution"`
	Commission   []AgentCommission `json:"commission"`
	Columns      []string          `json:"columns"`
	Rows         [][]string        `json:"rows"`
}

// Build applies f to the snapshot and computes every view. An empty
// selection yields only the notice.
func Build(s *Snapshot, f Filter) Dashboard {
	rows := Apply(s.Rows, f)
	if len(rows) == 0 {
		return Dashboard{Notice: NoMatchNotice, Columns: s.Columns}
	}
	detail := Detail(rows, s.Columns)
	d := Dashboard{
		KPIs:         ComputeKPIs(rows),
		TopAgents:    TopAgents(rows, TopAgentsLimit),
		MonthlyTrend: MonthlyTrend(rows),
		Statuses:     StatusDistribution(rows),
		Commission:   CommissionByAgent(rows),
		Columns:      detail.Columns(),
		Rows:         make([][]string, 0, detail.Len()),
	}
	for i := 0; i < detail.Len(); i++ {
		d.Rows = append(d.Rows, detail.Row(i))
	}
	return d
}
