package alerting

import (
	"strconv"
	"strings"
	"time"
)

// Rule keys.
const (
	RuleNoData        = "NoData"
	RuleNoStageChange = "NoStageChange"
	RuleNoOpt         = "NoOpt"
	RuleSatOver       = "SatOver"
	// RuleDemStuckPrefix is followed by the link number.
	RuleDemStuckPrefix = "DemStuck_"
)

// Default thresholds.
const (
	DefaultNoData        = 30 * time.Second
	DefaultNoStageChange = 180 * time.Second
	DefaultNoOpt         = 120 * time.Second
	DefaultDemStuck      = 120 * time.Second
	DefaultTickInterval  = 5 * time.Second
	DefaultHistorySize   = 100
)

// Config holds rule thresholds.
type Config struct {
	// NoData is the silence tolerated before NoData is raised.
	NoData time.Duration
	// NoStageChange is the time without a stage header before NoStageChange is raised.
	NoStageChange time.Duration
	// NoOpt is the time without a link option line before NoOpt is raised.
	NoOpt time.Duration
	// DemStuck is how long a link's DEM may stay non-zero.
	DemStuck time.Duration
	// HistorySize caps the number of alerts kept.
	HistorySize int
}

// DefaultConfig returns the design thresholds.
func DefaultConfig() Config {
	return Config{
		NoData:        DefaultNoData,
		NoStageChange: DefaultNoStageChange,
		NoOpt:         DefaultNoOpt,
		DemStuck:      DefaultDemStuck,
		HistorySize:   DefaultHistorySize,
	}
}

// withDefaults replaces non-positive values with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.NoData <= 0 {
		c.NoData = def.NoData
	}

	if c.NoStageChange <= 0 {
		c.NoStageChange = def.NoStageChange
	}

	if c.NoOpt <= 0 {
		c.NoOpt = def.NoOpt
	}

	if c.DemStuck <= 0 {
		c.DemStuck = def.DemStuck
	}

	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}

	return c
}

// DemStuckRule returns the rule key for a link.
func DemStuckRule(link int) string {
	return RuleDemStuckPrefix + strconv.Itoa(link)
}

// isOverSaturated reports whether SAT text carries a capacity digit.
func isOverSaturated(sat string) bool {
	return strings.ContainsAny(sat, "456789")
}

// isIdleDEM reports whether a DEM value is blank or all zeros.
func isIdleDEM(dem string) bool {
	return strings.Trim(dem, "0 ") == ""
}
