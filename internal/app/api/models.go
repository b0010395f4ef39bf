// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package api

import (
	"time"
)

// Amounts are decimal strings in display units, percentages carry two decimals.
type Project struct {
	ID                uint64 `json:"id"`
	Owner             string `json:"owner"`
	Name              string `json:"name"`
	Details           string `json:"details"`
	Target            string `json:"target"`
	TotalInvested     string `json:"totalInvested"`
	Remaining         string `json:"remaining"`
	Equity            string `json:"equity"`
	EquityBasisPoints int64  `json:"equityBasisPoints"`
	Progress          string `json:"progress"`
	IsClosed          bool   `json:"isClosed"`
}

type ProjectsResponse struct {
	Projects     []Project  `json:"projects"`
	OpenCapacity string     `json:"openCapacity"`
	FetchedAt    *time.Time `json:"fetchedAt,omitempty"`
}

type Investment struct {
	Project     Project `json:"project"`
	Amount      string  `json:"amount"`
	EquityShare string  `json:"equityShare"`
}

type AccountResponse struct {
	Account   string       `json:"account"`
	Connected bool         `json:"connected"`
	Owned     []Project    `json:"owned"`
	Invested  []Investment `json:"invested"`
}

type SessionResponse struct {
	Account   string `json:"account"`
	Connected bool   `json:"connected"`
}

type CreateProjectRequest struct {
	Name    string `json:"name"`
	Details string `json:"details"`
	Target  string `json:"target"`
	// Percentage, e.g. "12.5".
	Equity string `json:"equity"`
}

type InvestRequest struct {
	Amount string `json:"amount"`
}

type ReceiptResponse struct {
	Handle      string `json:"handle"`
	BlockNumber uint64 `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
	Status      string `json:"status"`
}
