// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package ethereum binds the ledger and wallet contracts to an Ethereum node.
package ethereum

import (
	"context"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

// Backend is what the ledger needs from a node connection. *ethclient.Client
// implements it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Transactor is a signer able to authorize contract transactions.
type Transactor interface {
	blockvest.Signer
	TransactOpts() *bind.TransactOpts
}

type Ledger struct {
	log      logrus.FieldLogger
	backend  Backend
	address  common.Address
	contract *bind.BoundContract
}

func NewLedger(log logrus.FieldLogger, backend Backend, address string) (*Ledger, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Errorf("invalid contract address %q", address)
	}
	parsed, err := parseABI()
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(address)
	return &Ledger{
		log:      log.WithField("contract", addr.Hex()),
		backend:  backend,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
	}, nil
}

func (l *Ledger) ProjectIDs(ctx context.Context) ([]uint64, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodProjectIDs); err != nil {
		return nil, errors.Wrap(err, "failed to call getAllProjectIds")
	}
	return decodeIDs(out)
}

func (l *Ledger) Project(ctx context.Context, id uint64) (*blockvest.Project, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodProject, new(big.Int).SetUint64(id)); err != nil {
		return nil, errors.Wrapf(err, "failed to call getProject(%d)", id)
	}
	return decodeProject(id, out)
}

func (l *Ledger) Contribution(ctx context.Context, id uint64, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, errors.Errorf("invalid account %q", account)
	}
	var out []interface{}
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodContribution,
		new(big.Int).SetUint64(id), common.HexToAddress(account))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call getInvestorAmount(%d, %s)", id, account)
	}
	return decodeAmount(out)
}

func (l *Ledger) SubmitCreate(
	ctx context.Context,
	name, details string,
	target *big.Int,
	equity int64,
	signer blockvest.Signer,
) (blockvest.TxHandle, error) {
	return l.transact(ctx, signer, nil, methodCreate, name, details, target, big.NewInt(equity))
}

func (l *Ledger) SubmitInvest(ctx context.Context, id uint64, amount *big.Int, signer blockvest.Signer) (blockvest.TxHandle, error) {
	return l.transact(ctx, signer, amount, methodInvest, new(big.Int).SetUint64(id))
}

func (l *Ledger) SubmitWithdraw(ctx context.Context, id uint64, signer blockvest.Signer) (blockvest.TxHandle, error) {
	return l.transact(ctx, signer, nil, methodWithdraw, new(big.Int).SetUint64(id))
}

func (l *Ledger) PollFinality(ctx context.Context, handle blockvest.TxHandle) (*blockvest.Finality, error) {
	receipt, err := l.backend.TransactionReceipt(ctx, common.HexToHash(string(handle)))
	return finalityOf(handle, receipt, err)
}

func (l *Ledger) transact(
	ctx context.Context,
	signer blockvest.Signer,
	value *big.Int,
	method string,
	params ...interface{},
) (blockvest.TxHandle, error) {
	transactor, ok := signer.(Transactor)
	if !ok {
		return "", errors.Wrapf(blockvest.ErrWalletUnavailable, "signer of %s cannot sign transactions", signer.Account())
	}
	opts := *transactor.TransactOpts()
	opts.Context = ctx
	opts.Value = value

	tx, err := l.contract.Transact(&opts, method, params...)
	if err != nil {
		return "", errors.Wrapf(err, "failed to submit %s", method)
	}
	l.log.WithFields(logrus.Fields{
		"method": method,
		"tx":     tx.Hash().Hex(),
		"from":   opts.From.Hex(),
	}).Info("transaction submitted")
	return blockvest.TxHandle(tx.Hash().Hex()), nil
}

func decodeIDs(out []interface{}) ([]uint64, error) {
	if len(out) != 1 {
		return nil, errors.Errorf("unexpected getAllProjectIds output of %d values", len(out))
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected getAllProjectIds output type %T", out[0])
	}
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		if !id.IsUint64() {
			return nil, errors.Errorf("project id %s out of range", id)
		}
		ids = append(ids, id.Uint64())
	}
	return ids, nil
}

// decodeProject maps the getProject tuple. The contract returns a zero owner for
// ids it never assigned.
func decodeProject(id uint64, out []interface{}) (*blockvest.Project, error) {
	if len(out) != 8 {
		return nil, errors.Errorf("unexpected getProject output of %d values", len(out))
	}
	rawID, ok1 := out[0].(*big.Int)
	owner, ok2 := out[1].(common.Address)
	name, ok3 := out[2].(string)
	details, ok4 := out[3].(string)
	target, ok5 := out[4].(*big.Int)
	equity, ok6 := out[5].(*big.Int)
	invested, ok7 := out[6].(*big.Int)
	closed, ok8 := out[7].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return nil, errors.New("unexpected getProject output types")
	}

	if owner == (common.Address{}) {
		return nil, errors.Wrapf(blockvest.ErrNotFound, "project %d", id)
	}
	if !equity.IsInt64() || equity.Int64() < 0 || equity.Int64() > 10000 {
		return nil, errors.Errorf("project %d has equity %s out of range", id, equity)
	}
	if !rawID.IsUint64() {
		return nil, errors.Errorf("project id %s out of range", rawID)
	}

	return &blockvest.Project{
		ID:            rawID.Uint64(),
		Owner:         owner.Hex(),
		Name:          name,
		Details:       details,
		Target:        target,
		Equity:        equity.Int64(),
		TotalInvested: invested,
		IsClosed:      closed,
	}, nil
}

func decodeAmount(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, errors.Errorf("unexpected getInvestorAmount output of %d values", len(out))
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected getInvestorAmount output type %T", out[0])
	}
	return amount, nil
}

// finalityOf maps a receipt lookup. A missing receipt means the transaction is
// not mined yet.
func finalityOf(handle blockvest.TxHandle, receipt *types.Receipt, err error) (*blockvest.Finality, error) {
	if errors.Is(err, goethereum.NotFound) {
		return &blockvest.Finality{State: blockvest.FinalityPending}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get receipt of %s", handle)
	}

	r := &blockvest.Receipt{Handle: handle, BlockHash: receipt.BlockHash.Hex()}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		r.Status = blockvest.FinalityFailed
		return &blockvest.Finality{State: blockvest.FinalityFailed, Receipt: r, Reason: "execution reverted"}, nil
	}
	r.Status = blockvest.FinalityConfirmed
	return &blockvest.Finality{State: blockvest.FinalityConfirmed, Receipt: r}, nil
}
