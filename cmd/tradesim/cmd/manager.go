package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/replay"
	"github.com/rustyeddy/tradesim/session"
)

// newManager builds a session manager from cfg. The caller closes the
// manager before the journal.
func newManager(wall replay.WallClock, tickInterval, orderWait time.Duration) (*session.Manager, journal.Journal, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, err
	}
	source, err := cfg.LoadSource()
	if err != nil {
		return nil, nil, err
	}
	j, err := cfg.OpenJournal()
	if err != nil {
		return nil, nil, err
	}

	m := session.NewManager(catalog, source, session.Options{
		Logger:               log,
		Wall:                 wall,
		TickInterval:         tickInterval,
		OrderWait:            orderWait,
		Mailbox:              cfg.Engine.Mailbox,
		AccountCurrency:      cfg.Account.Currency,
		Costs:                cfg.CostModel(),
		MaintenanceMargin:    cfg.MaintenanceMargin(),
		Journal:              j,
		SnapshotTransactions: cfg.Engine.SnapshotTransactions,
	})
	return m, j, nil
}

func closeAll(m *session.Manager, j journal.Journal) error {
	if err := m.Close(); err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}
	if err := j.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
