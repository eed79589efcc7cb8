package domain

// Requirement is one document type the rule engine decided the applicant
// must (or may) submit. Requirements are recomputed from the answer on
// every evaluation and never persisted, so the list can never drift from
// the questionnaire.
type Requirement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	// Generatable marks requirements for which a pre-filled template PDF
	// can be produced by the form generator collaborator.
	Generatable bool   `json:"generatable,omitempty"`
	TemplateURL string `json:"templateUrl,omitempty"`
	// MaxFiles caps the number of uploaded files; 0 means no cap.
	MaxFiles int `json:"maxFiles,omitempty"`
}

// RuleVariant selects between the two observed income-document rules for
// the together branch.
type RuleVariant int

const (
	// VariantPerParent requests income documents for each parent
	// independently. This is the primary rule.
	VariantPerParent RuleVariant = iota
	// VariantJointCertificate groups both parents into a single joint
	// income certificate when neither has steady income, and falls back to
	// the per-parent rule otherwise.
	VariantJointCertificate
)

// Requirement ids. Stable keys: uploads, statuses and blob paths are all
// keyed by these.
const (
	ReqForm101        = "form_101"
	ReqVolunteerDoc   = "volunteer_doc"
	ReqStudentConsent = "consent_student_form"
	ReqStudentIDCopy  = "id_copies_student"

	ReqFatherConsent = "consent_father_form"
	ReqFatherIDCopy  = "id_copies_father"
	ReqMotherConsent = "consent_mother_form"
	ReqMotherIDCopy  = "id_copies_mother"

	ReqFatherIncome       = "father_income"
	ReqFatherIncomeCert   = "father_income_cert"
	ReqFatherCertOfficer  = "fa_id_copies_gov"
	ReqMotherIncome       = "mother_income"
	ReqMotherIncomeCert   = "mother_income_cert"
	ReqMotherCertOfficer  = "ma_id_copies_gov"
	ReqJointIncomeCert    = "famo_income_cert"
	ReqJointCertOfficer   = "famo_id_copies_gov"

	ReqLegalStatus        = "legal_status"
	ReqFamilyStatusCert   = "family_status_cert"
	ReqFamilyCertOfficer  = "fam_id_copies_gov"
	ReqSingleIncome       = "single_parent_income"
	ReqSingleIncomeCert   = "single_parent_income_cert"
	ReqSingleCertOfficer  = "102_id_copies_gov"

	ReqGuardianConsent     = "guardian_consent"
	ReqGuardianIDCopy      = "guardian_id_copies"
	ReqGuardianIncome      = "guardian_income"
	ReqGuardianIncomeCert  = "guardian_income_cert"
	ReqGuardianCertOfficer = "guar_id_copies_gov"
	ReqParentLegalStatus   = "parent_legal_status"
)

const consentTemplateURL = "https://drive.google.com/file/d/1ZpgUsagMjrxvyno7Jwu1LO3r9Y82GAv4/view"

// DeriveRequirements maps a survey answer to the ordered list of required
// documents using the primary (per-parent) rule. It is pure: no I/O, no
// randomness, stable ordering.
func DeriveRequirements(a Answer) []Requirement {
	return DeriveRequirementsVariant(a, VariantPerParent)
}

// DeriveRequirementsVariant is DeriveRequirements with an explicit rule
// variant for the together branch.
func DeriveRequirementsVariant(a Answer, v RuleVariant) []Requirement {
	reqs := baseline()

	switch a.FamilyStatus {
	case FamilyTogether:
		reqs = append(reqs, togetherBranch(a, v)...)
	case FamilySingleParent:
		reqs = append(reqs, singleParentBranch(a)...)
	case FamilyGuardian:
		reqs = append(reqs, guardianBranch(a)...)
	}
	// An unset family status yields the baseline only, so partial answers
	// render without error during the questionnaire.
	return reqs
}

func baseline() []Requirement {
	return []Requirement{
		{ID: ReqForm101, Title: "Loan application form 101", Description: "Fill in every field truthfully before uploading", Required: true, Generatable: true, MaxFiles: 4},
		{ID: ReqVolunteerDoc, Title: "Community service record", Description: "At least one activity in the current academic year", Required: true},
		{ID: ReqStudentConsent, Title: "Borrower information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
		{ID: ReqStudentIDCopy, Title: "Certified copy of the borrower's ID card", Description: "The ID card must not be expired", Required: true},
	}
}

func togetherBranch(a Answer, v RuleVariant) []Requirement {
	reqs := []Requirement{
		{ID: ReqFatherConsent, Title: "Father's information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
		{ID: ReqFatherIDCopy, Title: "Certified copy of the father's ID card", Required: true},
		{ID: ReqMotherConsent, Title: "Mother's information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
		{ID: ReqMotherIDCopy, Title: "Certified copy of the mother's ID card", Required: true},
	}

	if v == VariantJointCertificate && a.FatherIncome == NoIncome && a.MotherIncome == NoIncome {
		return append(reqs,
			Requirement{ID: ReqJointIncomeCert, Title: "Income certificate form 102 for both parents", Required: true, Generatable: true},
			Requirement{ID: ReqJointCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the income certificate", Required: true},
		)
	}

	reqs = append(reqs, incomeDocuments(a.FatherIncome,
		Requirement{ID: ReqFatherIncome, Title: "Father's salary letter or payslip", Description: "Issued within the last 3 months", Required: true},
		Requirement{ID: ReqFatherIncomeCert, Title: "Father's income certificate form 102", Required: true, Generatable: true},
		Requirement{ID: ReqFatherCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the father's income certificate", Required: true},
	)...)
	reqs = append(reqs, incomeDocuments(a.MotherIncome,
		Requirement{ID: ReqMotherIncome, Title: "Mother's salary letter or payslip", Description: "Issued within the last 3 months", Required: true},
		Requirement{ID: ReqMotherIncomeCert, Title: "Mother's income certificate form 102", Required: true, Generatable: true},
		Requirement{ID: ReqMotherCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the mother's income certificate", Required: true},
	)...)
	return reqs
}

func singleParentBranch(a Answer) []Requirement {
	var reqs []Requirement
	if a.LivingWith == ParentFather {
		reqs = append(reqs,
			Requirement{ID: ReqFatherConsent, Title: "Father's information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
			Requirement{ID: ReqFatherIDCopy, Title: "Certified copy of the father's ID card", Required: true},
		)
	} else {
		reqs = append(reqs,
			Requirement{ID: ReqMotherConsent, Title: "Mother's information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
			Requirement{ID: ReqMotherIDCopy, Title: "Certified copy of the mother's ID card", Required: true},
		)
	}

	if a.LegalStatus == HasDocument {
		reqs = append(reqs, Requirement{ID: ReqLegalStatus, Title: "Divorce certificate copy or death certificate copy", Required: true})
	} else {
		reqs = append(reqs,
			Requirement{ID: ReqFamilyStatusCert, Title: "Family status certificate", Required: true, Generatable: true},
			Requirement{ID: ReqFamilyCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the family status certificate", Required: true},
		)
	}

	reqs = append(reqs, incomeDocuments(a.livingWithIncome(),
		Requirement{ID: ReqSingleIncome, Title: "Parent's salary letter or payslip", Description: "Issued within the last 3 months", Required: true},
		Requirement{ID: ReqSingleIncomeCert, Title: "Parent's income certificate form 102", Required: true, Generatable: true},
		Requirement{ID: ReqSingleCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the parent's income certificate", Required: true},
	)...)
	return reqs
}

func guardianBranch(a Answer) []Requirement {
	reqs := []Requirement{
		{ID: ReqGuardianConsent, Title: "Guardian's information disclosure consent", Required: true, Generatable: true, TemplateURL: consentTemplateURL},
		{ID: ReqGuardianIDCopy, Title: "Certified copy of the guardian's ID card", Required: true},
	}

	reqs = append(reqs, incomeDocuments(a.GuardianIncome,
		Requirement{ID: ReqGuardianIncome, Title: "Guardian's salary letter or payslip", Description: "Issued within the last 3 months", Required: true},
		Requirement{ID: ReqGuardianIncomeCert, Title: "Guardian's income certificate form 102", Required: true, Generatable: true},
		Requirement{ID: ReqGuardianCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the guardian's income certificate", Required: true},
	)...)

	if a.ParentLegalStatus == HasDocument {
		reqs = append(reqs, Requirement{ID: ReqParentLegalStatus, Title: "Parents' divorce certificate copy or death certificate copy", Required: true})
	}

	// The family status certificate is mandatory on this branch whether or
	// not the legal document above exists.
	return append(reqs,
		Requirement{ID: ReqFamilyStatusCert, Title: "Family status certificate", Required: true, Generatable: true},
		Requirement{ID: ReqFamilyCertOfficer, Title: "Certifying officer's government ID copy", Description: "For the family status certificate", Required: true},
	)
}

// incomeDocuments applies the shared income rule: a salary document when the
// person earns a steady income, otherwise an income certificate plus the
// certifying officer's ID copy.
func incomeDocuments(income IncomeStatus, salaryDoc, certDoc, officerDoc Requirement) []Requirement {
	if income == HasIncome {
		return []Requirement{salaryDoc}
	}
	return []Requirement{certDoc, officerDoc}
}
