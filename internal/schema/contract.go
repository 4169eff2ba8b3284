// Package schema declares the load-time contracts of the four insurance
// datasets: which columns must exist, which column is the unique key, which
// columns reference another dataset, and which columns carry money or dates.
//
// The data-quality catalog and the loader are both driven from these
// contracts, so a column is declared exactly once.
package schema

// Field types understood by the rule catalog.
const (
	TypeText  = "text"
	TypeDate  = "date"
	TypeMoney = "money"
	TypeInt   = "int"
)

// Dataset names.
const (
	Policies     = "policies"
	Endorsements = "endorsements"
	Payments     = "payments"
	Agents       = "agents"
)

// Field describes one column of a dataset.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// Required columns must be present in the input header; their absence is
	// a SchemaError. Optional columns gate the checks that read them.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
}

// Reference is a foreign key from a column of this dataset to the key of
// another dataset.
type Reference struct {
	Column       string `json:"column" yaml:"column"`
	Parent       string `json:"parent" yaml:"parent"`
	ParentColumn string `json:"parent_column" yaml:"parent_column"`
}

// DateOrder requires Start to be strictly before End.
type DateOrder struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Contract is the full declaration of one dataset.
type Contract struct {
	Name       string      `json:"name" yaml:"name"`
	File       string      `json:"file" yaml:"file"`
	Key        string      `json:"key" yaml:"key"`
	Fields     []Field     `json:"fields" yaml:"fields"`
	References []Reference `json:"references,omitempty" yaml:"references,omitempty"`
	Order      *DateOrder  `json:"order,omitempty" yaml:"order,omitempty"`
	// HeaderMap maps source header names to canonical column names.
	HeaderMap map[string]string `json:"header_map,omitempty" yaml:"header_map,omitempty"`
}

// RequiredColumns returns the names of required fields in declaration order.
func (c Contract) RequiredColumns() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// ColumnsOfType returns the names of fields with the given type.
func (c Contract) ColumnsOfType(typ string) []string {
	var out []string
	for _, f := range c.Fields {
		if f.Type == typ {
			out = append(out, f.Name)
		}
	}
	return out
}

// Field looks a field up by name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Insurance returns the contracts for policies, endorsements, payments and
// agents, in the order their checks appear in the report.
func Insurance() []Contract {
	return []Contract{
		{
			Name: Policies,
			File: "policies.csv",
			Key:  "policy_id",
			Fields: []Field{
				{Name: "policy_id", Type: TypeText, Required: true},
				{Name: "agent_id", Type: TypeText, Required: true},
				{Name: "inception_date", Type: TypeDate, Required: true},
				{Name: "expiration_date", Type: TypeDate, Required: true},
				{Name: "written_premium", Type: TypeMoney},
				{Name: "line_of_business", Type: TypeText, Required: true},
				{Name: "status", Type: TypeText, Required: true},
				{Name: "insured_name", Type: TypeText},
			},
			References: []Reference{{Column: "agent_id", Parent: Agents, ParentColumn: "agent_id"}},
			Order:      &DateOrder{Start: "inception_date", End: "expiration_date"},
		},
		{
			Name: Endorsements,
			File: "endorsements.csv",
			Key:  "endorsement_id",
			Fields: []Field{
				{Name: "endorsement_id", Type: TypeText, Required: true},
				{Name: "policy_id", Type: TypeText, Required: true},
				{Name: "effective_date", Type: TypeDate, Required: true},
			},
			References: []Reference{{Column: "policy_id", Parent: Policies, ParentColumn: "policy_id"}},
		},
		{
			Name: Payments,
			File: "payments.csv",
			Key:  "payment_id",
			Fields: []Field{
				{Name: "payment_id", Type: TypeText, Required: true},
				{Name: "policy_id", Type: TypeText, Required: true},
				{Name: "amount", Type: TypeMoney},
				{Name: "payment_date", Type: TypeDate, Required: true},
			},
			References: []Reference{{Column: "policy_id", Parent: Policies, ParentColumn: "policy_id"}},
		},
		{
			Name: Agents,
			File: "agents.csv",
			Key:  "agent_id",
			Fields: []Field{
				{Name: "agent_id", Type: TypeText, Required: true},
				{Name: "agent_name", Type: TypeText},
				{Name: "commission_rate_bps", Type: TypeInt},
			},
		},
	}
}

// ByName indexes contracts by dataset name.
func ByName(cs []Contract) map[string]Contract {
	m := make(map[string]Contract, len(cs))
	for _, c := range cs {
		m[c.Name] = c
	}
	return m
}
