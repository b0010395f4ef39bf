// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

const (
	methodProjectIDs   = "getAllProjectIds"
	methodProject      = "getProject"
	methodContribution = "getInvestorAmount"
	methodCreate       = "createProject"
	methodInvest       = "investInProject"
	methodWithdraw     = "withdrawFunds"
)

// contractABI is the subset of the Blockvest contract interface the ledger uses.
const contractABI = `[
  {"type":"function","name":"getAllProjectIds","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getProject","stateMutability":"view",
   "inputs":[{"name":"projectId","type":"uint256"}],
   "outputs":[
     {"name":"id","type":"uint256"},
     {"name":"owner","type":"address"},
     {"name":"name","type":"string"},
     {"name":"details","type":"string"},
     {"name":"target","type":"uint256"},
     {"name":"equity","type":"uint256"},
     {"name":"totalInvested","type":"uint256"},
     {"name":"isClosed","type":"bool"}]},
  {"type":"function","name":"getInvestorAmount","stateMutability":"view",
   "inputs":[{"name":"projectId","type":"uint256"},{"name":"investor","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"createProject","stateMutability":"nonpayable",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"details","type":"string"},
     {"name":"target","type":"uint256"},
     {"name":"equity","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"investInProject","stateMutability":"payable",
   "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawFunds","stateMutability":"nonpayable",
   "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]}
]`

func parseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "failed to parse contract abi")
	}
	return parsed, nil
}
