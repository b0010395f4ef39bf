// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package postgres persists projection snapshots.
package postgres

import (
	"context"
	"time"

	"github.com/go-pg/pg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/models"
)

type ProjectStorage struct {
	log logrus.FieldLogger
	db  *pg.DB
	now func() time.Time
}

func NewProjectStorage(log logrus.FieldLogger, db *pg.DB) *ProjectStorage {
	return &ProjectStorage{
		log: log.WithField("storage", "projects"),
		db:  db,
		now: time.Now,
	}
}

// Replace swaps the stored projection for projects in one transaction.
func (s *ProjectStorage) Replace(ctx context.Context, projects []*blockvest.Project) error {
	fetchedAt := s.now()
	rows := make([]*models.Project, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, projectSchema(p, fetchedAt))
	}

	err := s.db.WithContext(ctx).RunInTransaction(func(tx *pg.Tx) error {
		if _, err := tx.Exec("DELETE FROM blockvest_projects"); err != nil {
			return errors.Wrap(err, "failed to clear projects")
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.Model(&rows).Insert(); err != nil {
			return errors.Wrapf(err, "failed to insert %d projects", len(rows))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("projects", len(rows)).Debug("projection stored")
	return nil
}

// All returns the stored projection ordered by id.
func (s *ProjectStorage) All(ctx context.Context) ([]*blockvest.Project, error) {
	var rows []*models.Project
	err := s.db.WithContext(ctx).Model(&rows).Order("id ASC").Select()
	if err != nil {
		return nil, errors.Wrap(err, "failed request to db")
	}

	projects := make([]*blockvest.Project, 0, len(rows))
	for _, row := range rows {
		p, err := projectModel(row)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read project %d", row.ID)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func projectSchema(p *blockvest.Project, fetchedAt time.Time) *models.Project {
	p = p.Copy()
	return &models.Project{
		ID:            p.ID,
		Owner:         p.Owner,
		Name:          p.Name,
		Details:       p.Details,
		Target:        p.Target.String(),
		Equity:        p.Equity,
		TotalInvested: p.TotalInvested.String(),
		IsClosed:      p.IsClosed,
		FetchedAt:     fetchedAt,
	}
}

func projectModel(row *models.Project) (*blockvest.Project, error) {
	target, err := row.TargetAmount()
	if err != nil {
		return nil, err
	}
	invested, err := row.InvestedAmount()
	if err != nil {
		return nil, err
	}
	return &blockvest.Project{
		ID:            row.ID,
		Owner:         row.Owner,
		Name:          row.Name,
		Details:       row.Details,
		Target:        target,
		Equity:        row.Equity,
		TotalInvested: invested,
		IsClosed:      row.IsClosed,
	}, nil
}
