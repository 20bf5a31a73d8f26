package types

import "strings"

type AttackType string

const (
	SQLInjection       AttackType = "sql_injection"
	XSSAttempt         AttackType = "xss_attempt"
	DirectoryTraversal AttackType = "directory_traversal"
	CommandInjection   AttackType = "command_injection"
	BruteForce         AttackType = "brute_force"
	WebScan            AttackType = "web_scan"
	DatabaseProbe      AttackType = "database_probe"
	ConnectionAttempt  AttackType = "connection_attempt"
)

var attackTypes = []AttackType{
	SQLInjection,
	XSSAttempt,
	DirectoryTraversal,
	CommandInjection,
	BruteForce,
	WebScan,
	DatabaseProbe,
	ConnectionAttempt,
}

// AttackTypes returns every known attack type, in classification order.
func AttackTypes() []AttackType {
	ret := make([]AttackType, len(attackTypes))
	copy(ret, attackTypes)

	return ret
}

// ParseAttackType never fails: unknown values map to ConnectionAttempt.
func ParseAttackType(s string) AttackType {
	t := AttackType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}

	return ConnectionAttempt
}

func (t AttackType) Valid() bool {
	for _, known := range attackTypes {
		if t == known {
			return true
		}
	}

	return false
}

func (t AttackType) String() string {
	return string(t)
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity maps unknown values to SeverityLow.
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev
	default:
		return SeverityLow
	}
}

// Rank orders severities, low being 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// cumulative event counts per source address
const (
	MediumThreatThreshold   = 5
	HighThreatThreshold     = 20
	CriticalThreatThreshold = 50
)

// ThreatLevelFor derives the threat level of an address from its cumulative event count.
func ThreatLevelFor(count int64) ThreatLevel {
	switch {
	case count >= CriticalThreatThreshold:
		return ThreatCritical
	case count >= HighThreatThreshold:
		return ThreatHigh
	case count >= MediumThreatThreshold:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

// ParseThreatLevel maps unknown values to ThreatLow.
func ParseThreatLevel(s string) ThreatLevel {
	switch lvl := ThreatLevel(strings.ToLower(strings.TrimSpace(s))); lvl {
	case ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical:
		return lvl
	default:
		return ThreatLow
	}
}

func (l ThreatLevel) String() string {
	return string(l)
}
