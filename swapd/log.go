package swapd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/xswap/abci"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/escrow"
	"github.com/lightninglabs/xswap/fsm"
	"github.com/lightninglabs/xswap/kvdb"
	"github.com/lightninglabs/xswap/resolver"
)

// Subsystem defines the sub system name of this package.
const Subsystem = "SWPD"

var (
	logMgr *subLoggerManager
	log    btclog.Logger = btclog.Disabled
)

// subLoggerManager hands out the sub loggers of all packages and sets their
// levels.
type subLoggerManager struct {
	handler *btclog.DefaultHandler
	loggers map[string]btclog.Logger
}

// newSubLoggerManager creates a manager writing to w.
func newSubLoggerManager(w io.Writer) *subLoggerManager {
	return &subLoggerManager{
		handler: btclog.NewDefaultHandler(w),
		loggers: make(map[string]btclog.Logger),
	}
}

// genSubLogger creates the logger of a subsystem and passes it to useLogger.
func (m *subLoggerManager) genSubLogger(subsystem string,
	useLogger func(btclog.Logger)) btclog.Logger {

	logger := btclog.NewSLogger(m.handler.SubSystem(subsystem))
	m.loggers[subsystem] = logger

	if useLogger != nil {
		useLogger(logger)
	}

	return logger
}

// SupportedSubsystems returns the sorted subsystem tags.
func (m *subLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.loggers))
	for subsystem := range m.loggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// setLogLevels sets the level of all subsystems.
func (m *subLoggerManager) setLogLevels(level btclogv1.Level) {
	for _, logger := range m.loggers {
		logger.SetLevel(level)
	}
}

// parseAndSetDebugLevels parses the debuglevel option, either a single level
// for all subsystems or a list of <subsystem>=<level> pairs, and applies it.
func (m *subLoggerManager) parseAndSetDebugLevels(debugLevel string) error {
	// A single level without subsystems sets all of them.
	if !strings.Contains(debugLevel, "=") &&
		!strings.Contains(debugLevel, ",") {

		level, ok := btclog.LevelFromString(debugLevel)
		if !ok {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}
		m.setLogLevels(level)

		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		if pair == "" {
			continue
		}

		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair %q", pair)
		}

		subsystem, levelStr := fields[0], fields[1]
		logger, ok := m.loggers[subsystem]
		if !ok {
			return fmt.Errorf("the specified subsystem %q is "+
				"invalid, supported subsystems: %v", subsystem,
				m.SupportedSubsystems())
		}

		level, ok := btclog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("invalid debug level %q for %v",
				levelStr, subsystem)
		}
		logger.SetLevel(level)
	}

	return nil
}

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(w io.Writer) {
	logMgr = newSubLoggerManager(w)

	log = logMgr.genSubLogger(Subsystem, nil)
	logMgr.genSubLogger(kvdb.Subsystem, kvdb.UseLogger)
	logMgr.genSubLogger(chain.Subsystem, chain.UseLogger)
	logMgr.genSubLogger(escrow.Subsystem, escrow.UseLogger)
	logMgr.genSubLogger(resolver.Subsystem, resolver.UseLogger)
	logMgr.genSubLogger(fsm.Subsystem, fsm.UseLogger)
	logMgr.genSubLogger(abci.Subsystem, abci.UseLogger)
}
