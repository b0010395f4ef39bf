// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package api

type ErrorMessage struct {
	Error []string `json:"error"`
	Code  string   `json:"code,omitempty"`
	Field string   `json:"field,omitempty"`
	// Largest acceptable amount, display units.
	Max string `json:"max,omitempty"`
}

func NewSingleMessageError(err string) ErrorMessage {
	return ErrorMessage{Error: []string{err}}
}
