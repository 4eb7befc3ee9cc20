package execution

import "errors"

var (
	errUnknownInstrument  = errors.New("execution: unknown instrument")
	errNoMarketData       = errors.New("execution: no market data available for instrument")
	errInsufficientMargin = errors.New("execution: insufficient buying power")
)
