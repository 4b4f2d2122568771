// Package threshold classifies a raw metric value as normal, warning,
// critical or unknown. Classification is pure and total: every input maps
// to exactly one status, and unknown is returned iff the value does not
// parse as a finite number.
//
// The rules are asymmetric per metric class:
//
//	floor   (water level): only running low matters
//	ceiling (wind speed):  only running high matters
//	range   (the rest):    either side matters, capped at warning
package threshold

import (
	"fmt"
	"strings"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/util"
)

// Policy selects the warning tier for floor and ceiling metrics.
type Policy int

const (
	// PolicyRange: floor metrics are critical below Min and otherwise
	// normal; ceiling metrics are critical above Max and warn above 80% of
	// Max.
	PolicyRange Policy = iota
	// PolicyWatermark: floor metrics also warn below a fixed watermark of
	// 15; ceiling metrics warn above a fixed watermark of 8.
	PolicyWatermark
)

const (
	// CeilingWarnRatio is the fraction of Max above which a ceiling metric
	// warns under PolicyRange.
	CeilingWarnRatio = 0.8
	// FloorWatermark and CeilingWatermark are the fixed warning tiers of
	// PolicyWatermark, independent of the configured range.
	FloorWatermark   = 15.0
	CeilingWatermark = 8.0
)

func (p Policy) String() string {
	if p == PolicyWatermark {
		return "watermark"
	}
	return "range"
}

// ParsePolicy resolves a config/flag value. Empty selects PolicyRange.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "range", "default":
		return PolicyRange, nil
	case "watermark", "fixed":
		return PolicyWatermark, nil
	default:
		return PolicyRange, fmt.Errorf("unknown threshold policy %q (valid: range, watermark)", s)
	}
}

// Classify maps a raw payload value for def to a status.
// raw may be anything the JSON decoder produced; the definition's divisor
// is applied before comparison.
func Classify(def metric.Definition, raw any, p Policy) model.Status {
	v, ok := util.ParseValue(raw)
	if !ok {
		return model.StatusUnknown
	}
	return ClassifyValue(def, def.Scale(v), p)
}

// ClassifyValue classifies an already-scaled finite value.
func ClassifyValue(def metric.Definition, v float64, p Policy) model.Status {
	if !util.IsFinite(v) {
		return model.StatusUnknown
	}
	switch def.Class {
	case metric.ClassFloor:
		if v < def.Min {
			return model.StatusCritical
		}
		if p == PolicyWatermark && v < FloorWatermark {
			return model.StatusWarning
		}
		return model.StatusNormal

	case metric.ClassCeiling:
		if v > def.Max {
			return model.StatusCritical
		}
		warnAt := def.Max * CeilingWarnRatio
		if p == PolicyWatermark {
			warnAt = CeilingWatermark
		}
		if v > warnAt {
			return model.StatusWarning
		}
		return model.StatusNormal

	default:
		if v < def.Min || v > def.Max {
			return model.StatusWarning
		}
		return model.StatusNormal
	}
}

// Worst returns the most severe status in statuses. Unknown ranks between
// warning and normal: a missing reading is worth a look but is not an alarm.
func Worst(statuses ...model.Status) model.Status {
	rank := func(s model.Status) int {
		switch s {
		case model.StatusCritical:
			return 3
		case model.StatusWarning:
			return 2
		case model.StatusUnknown:
			return 1
		default:
			return 0
		}
	}
	worst := model.StatusNormal
	for _, s := range statuses {
		if rank(s) > rank(worst) {
			worst = s
		}
	}
	return worst
}
