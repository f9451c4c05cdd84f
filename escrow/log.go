package escrow

import (
	"fmt"

	"github.com/btcsuite/btclog/v2"
)

// Subsystem defines the sub system name of this package.
const Subsystem = "ESCR"

// log is a logger that is initialized with no output filters. This means the
// package will not perform any logging by default until the caller requests
// it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	UseLogger(btclog.Disabled)
}

// DisableLog disables all library log output. Logging output is disabled by
// default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// OrderLog logs with a short order hash prefix.
type OrderLog struct {
	// Logger is the underlying based logger.
	Logger btclog.Logger

	// OrderHash identifies the target escrow.
	OrderHash string
}

// Debugf formats message according to format specifier and writes to
// log with LevelDebug.
func (o *OrderLog) Debugf(format string, params ...interface{}) {
	o.Logger.Debugf(
		fmt.Sprintf("%v %s", ShortHash(o.OrderHash), format),
		params...,
	)
}

// Infof formats message according to format specifier and writes to
// log with LevelInfo.
func (o *OrderLog) Infof(format string, params ...interface{}) {
	o.Logger.Infof(
		fmt.Sprintf("%v %s", ShortHash(o.OrderHash), format),
		params...,
	)
}

// ShortHash returns a shortened version of the order hash suitable for use
// in logging.
func ShortHash(orderHash string) string {
	if len(orderHash) <= 8 {
		return orderHash
	}

	return orderHash[:8]
}
