package enrich

// Credentials authorize token acquisition. Created once per run and never persisted.
type Credentials struct {
	ClientID   string
	PrivateKey string
}

// Token is a short-lived bearer token. The API enforces its expiry; a run only
// learns about it from a 401.
type Token string

// Attributes are the firmographics for one company. nil means the API omitted the field.
type Attributes struct {
	Website       *string
	Industry      *string
	Revenue       *string
	EmployeeCount *string
	HQLocation    *string
}

// Columns returns the attributes in output column order.
func (a Attributes) Columns() [5]*string {
	return [5]*string{a.Website, a.Industry, a.Revenue, a.EmployeeCount, a.HQLocation}
}

// AttributeNames lists the attribute keys in output column order.
var AttributeNames = [5]string{"website", "industry", "revenue", "employee_count", "hq_location"}

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeFound
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeFatal:
		return "fatal"
	default:
		return "not_found"
	}
}

// Outcome is the result of enriching one record.
//
//   - Found: Attributes holds the first match.
//   - NotFound: no match, or a per-record lookup failure that was absorbed.
//   - Fatal: Err must abort the whole run (the token is no longer usable).
type Outcome struct {
	Kind       OutcomeKind
	Attributes Attributes
	Err        error
}

func Found(a Attributes) Outcome { return Outcome{Kind: OutcomeFound, Attributes: a} }
func NotFound() Outcome          { return Outcome{Kind: OutcomeNotFound} }
func Fatal(err error) Outcome    { return Outcome{Kind: OutcomeFatal, Err: err} }
