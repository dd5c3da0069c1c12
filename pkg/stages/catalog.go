package stages

import (
	"errors"
	"fmt"

	"github.com/aretw0/escrow/pkg/domain"
)

// Catalog is an ordered, read-only sequence of stage definitions.
// The zero value is an empty catalog.
type Catalog struct {
	stages []domain.StageDefinition
}

var defaultCatalog = Catalog{stages: []domain.StageDefinition{
	{
		ID:          domain.StageUnderContract,
		Label:       "Under Contract",
		Description: "Initial contract execution and earnest money deposit",
		RequiredTaskTitles: []string{
			TitleEarnestMoney,
		},
		AutoAdvanceOnComplete: true,
		Icon:                  "document",
	},
	{
		ID:          domain.StageInspectionPeriod,
		Label:       "Inspection Period",
		Description: "Home inspection and due diligence",
		RequiredTaskTitles: []string{
			TitleHomeInspection,
			TitleTitleReport,
		},
		AutoAdvanceOnComplete: true,
		Icon:                  "search",
	},
	{
		ID:          domain.StageFinancing,
		Label:       "Financing",
		Description: "Loan application, appraisal, and underwriting",
		RequiredTaskTitles: []string{
			TitleLoanApplication,
			TitleAppraisal,
		},
		AutoAdvanceOnComplete: true,
		Icon:                  "dollar",
	},
	{
		ID:          domain.StageClearToClose,
		Label:       "Clear to Close",
		Description: "Final preparations for closing",
		RequiredTaskTitles: []string{
			TitleInsurance,
			TitleClosingDisclosure,
			TitleFinalWalkthrough,
			TitleWireFunds,
		},
		AutoAdvanceOnComplete: true,
		Icon:                  "check-circle",
	},
	{
		ID:          domain.StageClosed,
		Label:       "Closed",
		Description: "Transaction complete - you own the home!",
		RequiredTaskTitles: []string{
			TitleAttendClosing,
		},
		AutoAdvanceOnComplete: false,
		Icon:                  "checkmark",
	},
}}

// Default returns the canonical five-stage closing catalog.
func Default() Catalog {
	return defaultCatalog
}

// NewCatalog builds a catalog from the given definitions, in order.
// The definitions are copied; later changes to them do not affect the catalog.
func NewCatalog(defs ...domain.StageDefinition) Catalog {
	c := Catalog{stages: make([]domain.StageDefinition, len(defs))}
	for i, d := range defs {
		c.stages[i] = d.Clone()
	}
	return c
}

// Len reports the number of stages.
func (c Catalog) Len() int {
	return len(c.stages)
}

// All returns a copy of every stage definition in order.
func (c Catalog) All() []domain.StageDefinition {
	out := make([]domain.StageDefinition, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.Clone()
	}
	return out
}

// Validate checks the structural invariants of the catalog: at least one stage,
// unique IDs, and only the final stage declining to auto-advance.
func (c Catalog) Validate() error {
	if len(c.stages) == 0 {
		return errors.New("catalog has no stages")
	}
	seen := make(map[domain.StageID]bool, len(c.stages))
	last := len(c.stages) - 1
	for i, s := range c.stages {
		if s.ID == "" {
			return fmt.Errorf("stage %d has an empty id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stage id %q", s.ID)
		}
		seen[s.ID] = true

		if i == last && s.AutoAdvanceOnComplete {
			return fmt.Errorf("terminal stage %q must not auto-advance", s.ID)
		}
		if i != last && !s.AutoAdvanceOnComplete {
			return fmt.Errorf("non-terminal stage %q must auto-advance", s.ID)
		}
	}
	return nil
}

// All returns the stage definitions of the default catalog.
func All() []domain.StageDefinition {
	return defaultCatalog.All()
}
