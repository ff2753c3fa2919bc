package models

// Intent routes response construction and partitions the response cache.
type Intent string

const (
	IntentGeneralHighIncome  Intent = "general_high_income" // global "highest paying jobs" question
	IntentClarification      Intent = "clarification"       // resolution ambiguous, ask the user
	IntentJobIncome          Intent = "job_income"          // income of a resolved job
	IntentGeneralExploratory Intent = "general_exploratory" // no job, or comparison/exploration about one
	IntentUnknown            Intent = "unknown"
)

// String returns the string representation of an Intent.
func (i Intent) String() string {
	return string(i)
}

// IsValid returns true if the intent is one of the closed set.
func (i Intent) IsValid() bool {
	switch i {
	case IntentGeneralHighIncome, IntentClarification, IntentJobIncome,
		IntentGeneralExploratory, IntentUnknown:
		return true
	default:
		return false
	}
}
