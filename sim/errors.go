package sim

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrderPrice = errors.New("invalid order price")
	ErrInvalidQuantity   = errors.New("invalid order quantity")
	ErrInvalidLeverage   = errors.New("invalid leverage")
	ErrPositionClosed    = errors.New("position is already closed")
	ErrNoPrice           = errors.New("no candle observed yet")
	ErrUnknownAsset      = errors.New("unknown asset")
)

// NotEnoughFundsError is returned by Match once the account is wiped out.
// The run cannot continue.
type NotEnoughFundsError struct {
	Balance Balance
}

func (e *NotEnoughFundsError) Error() string {
	return fmt.Sprintf("not enough funds: %s total=%g available=%g",
		e.Balance.Asset, e.Balance.Total, e.Balance.Available)
}
