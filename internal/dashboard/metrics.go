// Package dashboard computes the reporting views over the persisted,
// sanitized tables: a per-policy metrics join, filters, KPIs, rankings,
// trends and the detail export. It only reads from storage.
package dashboard

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"insurance-dq/internal/dq"
	"insurance-dq/internal/table"
)

// Detail column names, in display order.
const (
	ColPolicyID          = "policy_id"
	ColInsuredName       = "insured_name"
	ColLineOfBusiness    = "line_of_business"
	ColStatus            = "status"
	ColInceptionDate     = "inception_date"
	ColExpirationDate    = "expiration_date"
	ColWrittenPremium    = "net_written_premium"
	ColCollectedPremium  = "collected_premium_total"
	ColAgentName         = "agent_name"
	ColCommissionRateBps = "commission_rate_bps"
)

var displayColumns = []string{
	ColPolicyID, ColInsuredName, ColLineOfBusiness, ColStatus,
	ColInceptionDate, ColExpirationDate, ColWrittenPremium,
	ColCollectedPremium, ColAgentName, ColCommissionRateBps,
}

var bpsDivisor = decimal.NewFromInt(10000)

// PolicyMetric is one policy joined with its agent and collected payments.
type PolicyMetric struct {
	PolicyID       string
	InsuredName    string
	LineOfBusiness string
	Status         string
	InceptionDate  time.Time
	ExpirationDate time.Time
	AgentID        string
	AgentName      string

	WrittenPremium   decimal.Decimal
	CollectedPremium decimal.Decimal

	CommissionRateBps   int64
	HasCommissionRate   bool
	WrittenCommission   decimal.Decimal
	CollectedCommission decimal.Decimal
}

// Agent is the label used to group and filter by agent: the agent name, or
// the agent id when no name is known.
func (m PolicyMetric) Agent() string {
	if m.AgentName != "" {
		return m.AgentName
	}
	return m.AgentID
}

// Join builds one PolicyMetric per policy row. agents and payments may be
// nil. The returned columns are the display columns the inputs can fill.
func Join(policies, agents, payments *table.Table, p dq.DateParser) ([]PolicyMetric, []string) {
	type agentInfo struct {
		name   string
		bps    int64
		hasBps bool
	}
	byAgent := map[string]agentInfo{}
	if agents != nil {
		for i := 0; i < agents.Len(); i++ {
			id := strings.TrimSpace(agents.Value("agent_id", i))
			if _, dup := byAgent[id]; dup || id == "" {
				continue
			}
			info := agentInfo{name: strings.TrimSpace(agents.Value("agent_name", i))}
			if bps, err := strconv.ParseInt(strings.TrimSpace(agents.Value("commission_rate_bps", i)), 10, 64); err == nil {
				info.bps, info.hasBps = bps, true
			}
			byAgent[id] = info
		}
	}

	collected := map[string]decimal.Decimal{}
	if payments != nil && payments.Has("amount") {
		for i := 0; i < payments.Len(); i++ {
			id := strings.TrimSpace(payments.Value("policy_id", i))
			collected[id] = collected[id].Add(money(payments.Value("amount", i)))
		}
	}

	out := make([]PolicyMetric, 0, policies.Len())
	for i := 0; i < policies.Len(); i++ {
		m := PolicyMetric{
			PolicyID:       strings.TrimSpace(policies.Value("policy_id", i)),
			InsuredName:    strings.TrimSpace(policies.Value("insured_name", i)),
			LineOfBusiness: strings.TrimSpace(policies.Value("line_of_business", i)),
			Status:         strings.TrimSpace(policies.Value("status", i)),
			AgentID:        strings.TrimSpace(policies.Value("agent_id", i)),
			WrittenPremium: money(policies.Value("written_premium", i)),
		}
		m.InceptionDate, _ = p.Parse(policies.Value("inception_date", i))
		m.ExpirationDate, _ = p.Parse(policies.Value("expiration_date", i))
		m.CollectedPremium = collected[m.PolicyID]
		if a, ok := byAgent[m.AgentID]; ok {
			m.AgentName = a.name
			m.CommissionRateBps, m.HasCommissionRate = a.bps, a.hasBps
		}
		if m.HasCommissionRate {
			rate := decimal.NewFromInt(m.CommissionRateBps).Div(bpsDivisor)
			m.WrittenCommission = m.WrittenPremium.Mul(rate)
			m.CollectedCommission = m.CollectedPremium.Mul(rate)
		}
		out = append(out, m)
	}

	available := map[string]bool{
		ColPolicyID:          true,
		ColLineOfBusiness:    true,
		ColStatus:            true,
		ColInceptionDate:     true,
		ColExpirationDate:    true,
		ColInsuredName:       policies.Has("insured_name"),
		ColWrittenPremium:    policies.Has("written_premium"),
		ColCollectedPremium:  payments != nil && payments.Has("amount"),
		ColAgentName:         agents != nil && agents.Has("agent_name"),
		ColCommissionRateBps: agents != nil && agents.Has("commission_rate_bps"),
	}
	var cols []string
	for _, c := range displayColumns {
		if available[c] {
			cols = append(cols, c)
		}
	}
	return out, cols
}

// money parses a cell; NULL and non-numeric cells count as zero.
func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Detail renders rows as a table with the given display columns.
func Detail(rows []PolicyMetric, columns []string) *table.Table {
	t := table.New("policy_metrics", columns)
	vals := make([]string, len(columns))
	for _, m := range rows {
		for j, c := range columns {
			vals[j] = cell(m, c)
		}
		_ = t.AppendRow(vals)
	}
	return t
}

func cell(m PolicyMetric, column string) string {
	switch column {
	case ColPolicyID:
		return m.PolicyID
	case ColInsuredName:
		return m.InsuredName
	case ColLineOfBusiness:
		return m.LineOfBusiness
	case ColStatus:
		return m.Status
	case ColInceptionDate:
		return formatDate(m.InceptionDate)
	case ColExpirationDate:
		return formatDate(m.ExpirationDate)
	case ColWrittenPremium:
		return m.WrittenPremium.StringFixed(2)
	case ColCollectedPremium:
		return m.CollectedPremium.StringFixed(2)
	case ColAgentName:
		return m.AgentName
	case ColCommissionRateBps:
		if !m.HasCommissionRate {
			return ""
		}
		return strconv.FormatInt(m.CommissionRateBps, 10)
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
