// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package accounting

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/pkg/quantity"
)

type CreateInput struct {
	Name    string
	Details string
	Target  *big.Int
	Equity  int64
}

type InvestInput struct {
	ProjectID uint64
	Amount    *big.Int
}

// ValidateCreate rejects project parameters the ledger would refuse or that make
// no sense, before any submission cost is spent.
func ValidateCreate(name, details, target, equityPercent string) (*CreateInput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.InvalidName,
			Field:   "name",
			Message: "name must not be empty",
		}
	}

	amount, err := quantity.ToBaseUnits(target)
	if err != nil || amount.Sign() <= 0 {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.InvalidTarget,
			Field:   "target",
			Message: fmt.Sprintf("target %q must be a positive amount", target),
		}
	}

	equity, err := quantity.PercentageToBasisPoints(equityPercent)
	if err != nil {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.InvalidEquity,
			Field:   "equity",
			Message: fmt.Sprintf("equity %q must be between 0.01%% and 100%%", equityPercent),
		}
	}

	return &CreateInput{
		Name:    name,
		Details: details,
		Target:  amount,
		Equity:  equity,
	}, nil
}

// ValidateInvest checks the amount against the last known state of the project.
// The ledger stays the arbiter: two investments validated against the same state
// may still race for the same capacity.
func ValidateInvest(p *blockvest.Project, amount string) (*InvestInput, error) {
	if p.IsClosed {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.ProjectClosed,
			Field:   "project",
			Message: fmt.Sprintf("project %d is closed", p.ID),
		}
	}

	value, err := quantity.ToBaseUnits(amount)
	if err != nil || value.Sign() <= 0 {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.InvalidAmount,
			Field:   "amount",
			Message: fmt.Sprintf("amount %q must be a positive amount", amount),
		}
	}

	remaining := p.Remaining()
	if value.Cmp(remaining) > 0 {
		return nil, &blockvest.ValidationError{
			Code:    blockvest.ExceedsRemainingCapacity,
			Field:   "amount",
			Message: fmt.Sprintf("maximum investment allowed: %s", quantity.ToDisplayString(remaining)),
			Max:     remaining,
		}
	}

	return &InvestInput{ProjectID: p.ID, Amount: value}, nil
}

// ValidateWithdraw is a best-effort ownership check; the ledger enforces the real rule.
func ValidateWithdraw(p *blockvest.Project, account string) error {
	if !IsOwner(p, account) {
		return &blockvest.ValidationError{
			Code:    blockvest.NotOwner,
			Field:   "project",
			Message: fmt.Sprintf("only the owner of project %d can withdraw", p.ID),
		}
	}
	return nil
}

func IsOwner(p *blockvest.Project, account string) bool {
	return blockvest.SameAccount(p.Owner, account)
}
