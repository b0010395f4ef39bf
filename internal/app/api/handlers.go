// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/app/blockvest/projection"
	"github.com/insolar/blockvest/internal/pkg/quantity"
)

type ServerInterface interface {
	Projects(ctx echo.Context) error
	Project(ctx echo.Context, id uint64) error
	Account(ctx echo.Context) error
	Connect(ctx echo.Context) error
	Disconnect(ctx echo.Context) error
	CreateProject(ctx echo.Context) error
	Invest(ctx echo.Context, id uint64) error
	Withdraw(ctx echo.Context, id uint64) error
}

type Projection interface {
	Snapshot() *projection.Snapshot
	Project(id uint64) (*blockvest.Project, bool)
	AccountView() *blockvest.AccountView
	Refresh(ctx context.Context) error
}

type Sessions interface {
	Current() (string, bool)
	Connect(ctx context.Context) (string, error)
	Disconnect()
}

type Engine interface {
	CreateProject(ctx context.Context, name, details, target, equityPercent string) (*blockvest.Receipt, error)
	Invest(ctx context.Context, id uint64, amount string) (*blockvest.Receipt, error)
	Withdraw(ctx context.Context, id uint64) (*blockvest.Receipt, error)
}

type BlockvestServer struct {
	log        logrus.FieldLogger
	projection Projection
	sessions   Sessions
	engine     Engine
}

func NewBlockvestServer(log logrus.FieldLogger, projection Projection, sessions Sessions, engine Engine) *BlockvestServer {
	return &BlockvestServer{log: log, projection: projection, sessions: sessions, engine: engine}
}

func (s *BlockvestServer) Projects(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SnapshotToAPI(s.projection.Snapshot()))
}

func (s *BlockvestServer) Project(ctx echo.Context, id uint64) error {
	p, ok := s.projection.Project(id)
	if !ok {
		return s.fail(ctx, errors.Wrapf(blockvest.ErrNotFound, "project %d", id))
	}
	return ctx.JSON(http.StatusOK, ProjectToAPI(p))
}

func (s *BlockvestServer) Account(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, AccountViewToAPI(s.projection.AccountView()))
}

func (s *BlockvestServer) Connect(ctx echo.Context) error {
	account, err := s.sessions.Connect(ctx.Request().Context())
	if err != nil {
		return s.fail(ctx, err)
	}
	if err := s.projection.Refresh(ctx.Request().Context()); err != nil {
		s.log.Error(errors.Wrap(err, "failed to refresh after connect"))
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Account: account, Connected: true})
}

func (s *BlockvestServer) Disconnect(ctx echo.Context) error {
	s.sessions.Disconnect()
	return ctx.JSON(http.StatusOK, SessionResponse{})
}

func (s *BlockvestServer) CreateProject(ctx echo.Context) error {
	var req CreateProjectRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	receipt, err := s.engine.CreateProject(ctx.Request().Context(), req.Name, req.Details, req.Target, req.Equity)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ReceiptToAPI(receipt))
}

func (s *BlockvestServer) Invest(ctx echo.Context, id uint64) error {
	var req InvestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	receipt, err := s.engine.Invest(ctx.Request().Context(), id, req.Amount)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ReceiptToAPI(receipt))
}

func (s *BlockvestServer) Withdraw(ctx echo.Context, id uint64) error {
	receipt, err := s.engine.Withdraw(ctx.Request().Context(), id)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ReceiptToAPI(receipt))
}

func (s *BlockvestServer) fail(ctx echo.Context, err error) error {
	status, msg := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.WithField("path", ctx.Path()).Error(err)
	}
	return ctx.JSON(status, msg)
}

// errorResponse maps the error taxonomy to a status and a body.
func errorResponse(err error) (int, ErrorMessage) {
	msg := NewSingleMessageError(err.Error())

	var verr *blockvest.ValidationError
	if errors.As(err, &verr) {
		msg = NewSingleMessageError(verr.Message)
		msg.Code = string(verr.Code)
		msg.Field = verr.Field
		if verr.Max != nil {
			msg.Max = quantity.ToDisplayString(verr.Max)
		}
		return http.StatusBadRequest, msg
	}
	var failed *blockvest.TransactionFailedError
	if errors.As(err, &failed) {
		msg.Code = "TransactionFailed"
		return http.StatusUnprocessableEntity, msg
	}

	for _, m := range []struct {
		target error
		code   string
		status int
	}{
		{blockvest.ErrNotFound, "NotFound", http.StatusNotFound},
		{blockvest.ErrUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{blockvest.ErrWrongNetwork, "WrongNetwork", http.StatusConflict},
		{blockvest.ErrUserRejected, "UserRejected", http.StatusConflict},
		{blockvest.ErrWalletUnavailable, "WalletUnavailable", http.StatusServiceUnavailable},
		{blockvest.ErrTransactionTimeout, "TransactionTimeout", http.StatusGatewayTimeout},
		{blockvest.ErrReadFailure, "ReadFailure", http.StatusBadGateway},
		{blockvest.ErrSubmissionFailure, "SubmissionFailure", http.StatusBadGateway},
		{context.Canceled, "Canceled", http.StatusServiceUnavailable},
		{context.DeadlineExceeded, "Canceled", http.StatusServiceUnavailable},
	} {
		if errors.Is(err, m.target) {
			msg.Code = m.code
			return m.status, msg
		}
	}
	return http.StatusInternalServerError, NewSingleMessageError("internal error")
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) Projects(ctx echo.Context) error {
	return w.Handler.Projects(ctx)
}

func (w *ServerInterfaceWrapper) Project(ctx echo.Context) error {
	id, err := projectID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.Project(ctx, id)
}

func (w *ServerInterfaceWrapper) Account(ctx echo.Context) error {
	return w.Handler.Account(ctx)
}

func (w *ServerInterfaceWrapper) Connect(ctx echo.Context) error {
	return w.Handler.Connect(ctx)
}

func (w *ServerInterfaceWrapper) Disconnect(ctx echo.Context) error {
	return w.Handler.Disconnect(ctx)
}

func (w *ServerInterfaceWrapper) CreateProject(ctx echo.Context) error {
	return w.Handler.CreateProject(ctx)
}

func (w *ServerInterfaceWrapper) Invest(ctx echo.Context) error {
	id, err := projectID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.Invest(ctx, id)
}

func (w *ServerInterfaceWrapper) Withdraw(ctx echo.Context) error {
	id, err := projectID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.Withdraw(ctx, id)
}

func projectID(ctx echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid format for parameter id")
	}
	return id, nil
}

func RegisterHandlers(router interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}, si ServerInterface) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.GET("/api/projects", wrapper.Projects)
	router.GET("/api/projects/:id", wrapper.Project)
	router.GET("/api/account", wrapper.Account)
	router.POST("/api/session/connect", wrapper.Connect)
	router.POST("/api/session/disconnect", wrapper.Disconnect)
	router.POST("/api/projects", wrapper.CreateProject)
	router.POST("/api/projects/:id/invest", wrapper.Invest)
	router.POST("/api/projects/:id/withdraw", wrapper.Withdraw)
}
