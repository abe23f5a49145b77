package domain

type EmissionsScope string

const (
	ScopeOne           EmissionsScope = "scope1"
	ScopeTwo           EmissionsScope = "scope2"
	ScopeOneTwo        EmissionsScope = "scope1_2"
	ScopeThree         EmissionsScope = "scope3"
	ScopeOneTwoThree   EmissionsScope = "scope1_2_3"
	ScopeIntensityOnly EmissionsScope = "intensity"
)

func (s EmissionsScope) Valid() bool {
	switch s {
	case ScopeOne, ScopeTwo, ScopeOneTwo, ScopeThree, ScopeOneTwoThree, ScopeIntensityOnly:
		return true
	default:
		return false
	}
}

// TargetInput is the raw user input for a KPI assessment. The numeric values
// are pointers so that "not entered" is distinguishable from zero.
type TargetInput struct {
	CompanyName     string         `json:"company_name"`
	IndustrySector  string         `json:"industry_sector"`
	CountryCode     string         `json:"country_code"`
	NACECode        string         `json:"nace_code"`
	LoanType        string         `json:"loan_type"`
	BaselineValue   *float64       `json:"baseline_value,omitempty"`
	TargetValue     *float64       `json:"target_value,omitempty"`
	BaselineYear    int            `json:"baseline_year"`
	TimelineEndYear int            `json:"timeline_end_year"`
	EmissionsScope  EmissionsScope `json:"emissions_scope,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}
