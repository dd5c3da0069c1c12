package stages

import "github.com/aretw0/escrow/pkg/domain"

// Required task titles. These strings are matched exactly against task titles,
// so the checklist created for a new transaction must use them verbatim.
const (
	TitleEarnestMoney      = "Send Earnest Money Deposit"
	TitleHomeInspection    = "Schedule Home Inspection"
	TitleTitleReport       = "Review Title Report"
	TitleLoanApplication   = "Submit Loan Application"
	TitleAppraisal         = "Order Appraisal"
	TitleInsurance         = "Secure Homeowner's Insurance"
	TitleClosingDisclosure = "Review Closing Disclosure"
	TitleFinalWalkthrough  = "Complete Final Walkthrough"
	TitleWireFunds         = "Wire Closing Funds"
	TitleAttendClosing     = "Attend Closing"
)

// Stable tags for the default checklist items.
const (
	KindEarnestMoney      domain.TaskKind = "earnest_money"
	KindHomeInspection    domain.TaskKind = "home_inspection"
	KindTitleReport       domain.TaskKind = "title_report"
	KindLoanApplication   domain.TaskKind = "loan_application"
	KindAppraisal         domain.TaskKind = "appraisal"
	KindInsurance         domain.TaskKind = "homeowners_insurance"
	KindClosingDisclosure domain.TaskKind = "closing_disclosure"
	KindFinalWalkthrough  domain.TaskKind = "final_walkthrough"
	KindWireFunds         domain.TaskKind = "wire_funds"
	KindAttendClosing     domain.TaskKind = "attend_closing"
)

var titleByKind = map[domain.TaskKind]string{
	KindEarnestMoney:      TitleEarnestMoney,
	KindHomeInspection:    TitleHomeInspection,
	KindTitleReport:       TitleTitleReport,
	KindLoanApplication:   TitleLoanApplication,
	KindAppraisal:         TitleAppraisal,
	KindInsurance:         TitleInsurance,
	KindClosingDisclosure: TitleClosingDisclosure,
	KindFinalWalkthrough:  TitleFinalWalkthrough,
	KindWireFunds:         TitleWireFunds,
	KindAttendClosing:     TitleAttendClosing,
}

// TitleForKind returns the canonical title of a checklist kind.
func TitleForKind(kind domain.TaskKind) (string, bool) {
	title, ok := titleByKind[kind]
	return title, ok
}

// KindForTitle returns the checklist kind whose canonical title equals title.
func KindForTitle(title string) (domain.TaskKind, bool) {
	for kind, t := range titleByKind {
		if t == title {
			return kind, true
		}
	}
	return "", false
}
