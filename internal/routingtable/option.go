package routingtable

import "PastryDHT/internal/logger"

// Option is a functional option for configuring the RoutingTable.
type Option func(*RoutingTable)

// WithLogger injects a custom logger into the RoutingTable.
func WithLogger(lgr logger.Logger) Option {
	return func(rt *RoutingTable) {
		rt.lgr = lgr
	}
}
