// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package blockvest

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("project not found")
	ErrReadFailure = errors.New("ledger read failed")

	ErrUnauthorized      = errors.New("no active session")
	ErrWalletUnavailable = errors.New("wallet is not available")
	ErrWrongNetwork      = errors.New("wallet is connected to the wrong network")
	ErrUserRejected      = errors.New("request rejected by user")

	ErrSubmissionFailure  = errors.New("transaction submission failed")
	ErrTransactionTimeout = errors.New("transaction finality not observed in time")
)

// TransactionFailedError means the ledger finalized the write as failed.
// It is terminal: resubmitting may duplicate the intent.
type TransactionFailedError struct {
	Handle TxHandle
	Reason string
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Handle, e.Reason)
}

type ValidationCode string

const (
	InvalidName              ValidationCode = "InvalidName"
	InvalidTarget            ValidationCode = "InvalidTarget"
	InvalidEquity            ValidationCode = "InvalidEquity"
	InvalidAmount            ValidationCode = "InvalidAmount"
	ProjectClosed            ValidationCode = "ProjectClosed"
	ExceedsRemainingCapacity ValidationCode = "ExceedsRemainingCapacity"
	NotOwner                 ValidationCode = "NotOwner"
)

// ValidationError is a local, pre-submission rejection. Max carries the
// largest acceptable amount when the violated constraint has one.
type ValidationError struct {
	Code    ValidationCode
	Field   string
	Message string
	Max     *big.Int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err carries a ValidationError with the given code.
func IsValidation(err error, code ValidationCode) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	return verr.Code == code
}
