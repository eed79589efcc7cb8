package domain

// FamilyStatus is the branch selector answered by the first question.
type FamilyStatus string

const (
	FamilyUnset        FamilyStatus = ""
	FamilyTogether     FamilyStatus = "together"
	FamilySingleParent FamilyStatus = "single_parent"
	FamilyGuardian     FamilyStatus = "guardian"
)

// Parent identifies which parent a single-parent applicant lives with.
type Parent string

const (
	ParentUnset  Parent = ""
	ParentFather Parent = "father"
	ParentMother Parent = "mother"
)

// IncomeStatus records whether a parent or guardian has steady income.
type IncomeStatus string

const (
	IncomeUnset IncomeStatus = ""
	HasIncome   IncomeStatus = "has_income"
	NoIncome    IncomeStatus = "no_income"
)

// Possession records whether the applicant holds a legal document
// (divorce or death certificate).
type Possession string

const (
	PossessionUnset Possession = ""
	HasDocument     Possession = "has_document"
	NoDocument      Possession = "no_document"
)

// Answer is the completed questionnaire value. Fields irrelevant to the
// chosen family status stay at their zero value; the flow guarantees the
// engine never sees a half-answered active branch.
type Answer struct {
	FamilyStatus      FamilyStatus `bson:"familyStatus" json:"familyStatus"`
	LivingWith        Parent       `bson:"livingWith,omitempty" json:"livingWith,omitempty"`
	FatherIncome      IncomeStatus `bson:"fatherIncome,omitempty" json:"fatherIncome,omitempty"`
	MotherIncome      IncomeStatus `bson:"motherIncome,omitempty" json:"motherIncome,omitempty"`
	GuardianIncome    IncomeStatus `bson:"guardianIncome,omitempty" json:"guardianIncome,omitempty"`
	LegalStatus       Possession   `bson:"legalStatus,omitempty" json:"legalStatus,omitempty"`
	ParentLegalStatus Possession   `bson:"parentLegalStatus,omitempty" json:"parentLegalStatus,omitempty"`
}

// IsZero reports whether no question has been answered yet.
func (a Answer) IsZero() bool {
	return a == Answer{}
}

// livingWithIncome returns the income answer of the parent the applicant
// lives with. Only meaningful on the single-parent branch.
func (a Answer) livingWithIncome() IncomeStatus {
	if a.LivingWith == ParentFather {
		return a.FatherIncome
	}
	return a.MotherIncome
}
