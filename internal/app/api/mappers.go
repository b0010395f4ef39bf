// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package api

import (
	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/app/blockvest/accounting"
	"github.com/insolar/blockvest/internal/app/blockvest/projection"
	"github.com/insolar/blockvest/internal/pkg/quantity"
)

func ProjectToAPI(p *blockvest.Project) Project {
	return Project{
		ID:                p.ID,
		Owner:             p.Owner,
		Name:              p.Name,
		Details:           p.Details,
		Target:            quantity.ToDisplayString(p.Target),
		TotalInvested:     quantity.ToDisplayString(p.TotalInvested),
		Remaining:         quantity.ToDisplayString(p.Remaining()),
		Equity:            quantity.BasisPointsToPercentageString(p.Equity),
		EquityBasisPoints: p.Equity,
		Progress:          accounting.FormatPercentage(accounting.ComputeProgress(p)),
		IsClosed:          p.IsClosed,
	}
}

func ProjectsToAPI(projects []*blockvest.Project) []Project {
	res := make([]Project, 0, len(projects))
	for _, p := range projects {
		res = append(res, ProjectToAPI(p))
	}
	return res
}

func SnapshotToAPI(s *projection.Snapshot) ProjectsResponse {
	res := ProjectsResponse{
		Projects:     ProjectsToAPI(s.Projects),
		OpenCapacity: quantity.ToDisplayString(s.OpenCapacity()),
	}
	if !s.FetchedAt.IsZero() {
		fetchedAt := s.FetchedAt
		res.FetchedAt = &fetchedAt
	}
	return res
}

func AccountViewToAPI(v *blockvest.AccountView) AccountResponse {
	invested := make([]Investment, 0, len(v.Invested))
	for _, i := range v.Invested {
		invested = append(invested, Investment{
			Project:     ProjectToAPI(i.Project),
			Amount:      quantity.ToDisplayString(i.Amount),
			EquityShare: accounting.FormatPercentage(i.EquityShare),
		})
	}
	return AccountResponse{
		Account:   v.Account,
		Connected: v.Account != "",
		Owned:     ProjectsToAPI(v.Owned),
		Invested:  invested,
	}
}

func ReceiptToAPI(r *blockvest.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Handle:      string(r.Handle),
		BlockNumber: r.BlockNumber,
		BlockHash:   r.BlockHash,
		Status:      r.Status.String(),
	}
}
