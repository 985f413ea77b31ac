package store

import (
	"basegraph.app/assist/core/db"
)

type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Reports() ReportStore {
	return newReportStore(s.q)
}
