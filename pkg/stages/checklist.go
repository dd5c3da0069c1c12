package stages

import (
	"fmt"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/dustin/go-humanize"
)

const day = 24 * time.Hour

// DefaultInspectionDays applies when an offer does not specify an inspection window.
const DefaultInspectionDays = 10

// ChecklistOptions parameterizes the default task list of a new transaction.
type ChecklistOptions struct {
	// Now anchors the relative due dates.
	Now time.Time

	// ClosingDate is the offer's target closing date. Closing-relative tasks fall
	// back to Now when it is nil.
	ClosingDate *time.Time

	// InspectionDays is the inspection contingency window; zero means DefaultInspectionDays.
	InspectionDays int

	// EarnestMoney is quoted in the deposit task's description when positive.
	EarnestMoney int64
}

type taskTemplate struct {
	description func(ChecklistOptions) string
	due         func(ChecklistOptions) time.Time
}

func fromNow(days int) func(ChecklistOptions) time.Time {
	return func(o ChecklistOptions) time.Time {
		return o.Now.Add(time.Duration(days) * day)
	}
}

func beforeClosing(days int) func(ChecklistOptions) time.Time {
	return func(o ChecklistOptions) time.Time {
		anchor := o.Now
		if o.ClosingDate != nil {
			anchor = *o.ClosingDate
		}
		return anchor.Add(-time.Duration(days) * day)
	}
}

func fixed(text string) func(ChecklistOptions) string {
	return func(ChecklistOptions) string { return text }
}

var templates = map[domain.TaskKind]taskTemplate{
	KindEarnestMoney: {
		description: func(o ChecklistOptions) string {
			if o.EarnestMoney > 0 {
				return fmt.Sprintf("Transfer earnest money deposit of $%s to escrow account within 3 business days of contract acceptance.",
					humanize.Comma(o.EarnestMoney))
			}
			return "Transfer earnest money deposit to escrow account within 3 business days of contract acceptance."
		},
		due: fromNow(3),
	},
	KindHomeInspection: {
		description: fixed("Hire a licensed home inspector to evaluate the property condition. Must be completed within the inspection contingency period."),
		due: func(o ChecklistOptions) time.Time {
			days := o.InspectionDays
			if days <= 0 {
				days = DefaultInspectionDays
			}
			return fromNow(days)(o)
		},
	},
	KindTitleReport: {
		description: fixed("Review preliminary title report to ensure clear title. Address any liens, encumbrances, or title defects."),
		due:         fromNow(21),
	},
	KindLoanApplication: {
		description: fixed("Complete and submit your mortgage loan application with all required documentation (pay stubs, tax returns, bank statements)."),
		due:         fromNow(5),
	},
	KindAppraisal: {
		description: fixed("Lender will order professional appraisal to determine property value. Must meet or exceed purchase price for loan approval."),
		due:         fromNow(14),
	},
	KindInsurance: {
		description: fixed("Obtain quotes and purchase homeowner's insurance policy. Lender requires proof of insurance before closing."),
		due:         beforeClosing(7),
	},
	KindClosingDisclosure: {
		description: fixed("Review Closing Disclosure at least 3 days before closing. Verify loan terms, closing costs, and final numbers match your expectations."),
		due:         beforeClosing(3),
	},
	KindFinalWalkthrough: {
		description: fixed("Conduct final walkthrough of property 24-48 hours before closing to ensure agreed-upon repairs are complete and property is in acceptable condition."),
		due:         beforeClosing(1),
	},
	KindWireFunds: {
		description: fixed("Wire transfer remaining down payment and closing costs to escrow. Verify wire instructions directly with title company."),
		due:         beforeClosing(1),
	},
	KindAttendClosing: {
		description: fixed("Attend closing appointment to sign final documents, receive keys, and officially become a homeowner!"),
		due: func(o ChecklistOptions) time.Time {
			if o.ClosingDate != nil {
				return *o.ClosingDate
			}
			return fromNow(45)(o)
		},
	},
}

// Checklist builds the tasks a new transaction starts with: one per required title
// of every stage, in catalog order, numbered from 1. Titles are taken from the
// catalog itself so that every stage can be satisfied.
//
// Returned tasks have no ID or TransactionID; the caller assigns them.
func (c Catalog) Checklist(opts ChecklistOptions) []domain.Task {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	var tasks []domain.Task
	for _, stage := range c.stages {
		for _, title := range stage.RequiredTaskTitles {
			task := domain.Task{
				Title: title,
				Order: len(tasks) + 1,
			}
			if kind, ok := KindForTitle(title); ok {
				tmpl := templates[kind]
				due := tmpl.due(opts)
				task.Kind = kind
				task.Description = tmpl.description(opts)
				task.DueDate = &due
			}
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// DefaultChecklist builds the checklist of the default catalog.
func DefaultChecklist(opts ChecklistOptions) []domain.Task {
	return defaultCatalog.Checklist(opts)
}
