package isolation

import (
	"context"
	"time"
)

// txState is the transaction lifecycle. There is deliberately no
// committed state: the manager only ever rolls back, since its sole
// purpose is isolation, not persistence.
type txState int

const (
	stateOpen txState = iota
	stateRolledBack
)

// TxContext is one isolation transaction owned by a Manager. The embedded
// handle is lent to the caller for the transaction's lifetime only.
type TxContext struct {
	ID           string
	TestName     string
	NestingLevel int
	StartTime    time.Time

	state  txState
	tx     Tx
	cancel context.CancelFunc
}

// Age returns how long the transaction has been open.
func (c *TxContext) Age() time.Duration {
	return time.Since(c.StartTime)
}

// RolledBack reports whether the transaction reached its terminal state.
func (c *TxContext) RolledBack() bool {
	return c.state == stateRolledBack
}
