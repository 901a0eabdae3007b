package ledger

import (
	"fmt"

	"github.com/inaiurai/whitelist/internal/errs"
)

// ErrInsufficientFunds is returned by stores when a debit exceeds the balance.
var ErrInsufficientFunds = errs.ErrInsufficientFunds

// InsufficientFundsError carries the balance observed at rejection time and the
// amount that was required.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d", e.Balance, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == errs.ErrInsufficientFunds
}

// errBalanceOverflow rejects a credit that would push the balance past int64.
func errBalanceOverflow() error {
	return errs.Invalid("amount", "would overflow the account balance")
}
