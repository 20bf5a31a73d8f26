// Package classifier scores a captured payload into an attack type and a severity.
package classifier

import (
	"strings"

	"github.com/wasilibs/go-re2"

	"github.com/sentinelhq/sentinel/pkg/types"
)

type Result struct {
	Type      types.AttackType
	Severity  types.Severity
	UserAgent string
	// Signature is the signature that decided the severity, empty for low.
	Signature string
}

// Classifier is immutable once built and safe for concurrent use.
type Classifier struct {
	high      signatureSet
	medium    signatureSet
	rules     []compiledRule
	ports     map[int]types.AttackType
	userAgent *re2.Regexp
}

type compiledRule struct {
	attackType types.AttackType
	set        signatureSet
}

func New() *Classifier {
	c := &Classifier{
		high:      newSignatureSet(highSeveritySignatures),
		medium:    newSignatureSet(mediumSeveritySignatures),
		rules:     make([]compiledRule, 0, len(typeRules)),
		ports:     make(map[int]types.AttackType),
		userAgent: re2.MustCompile(`(?i)User-Agent:\s*([^\r\n]+)`),
	}

	for _, rule := range typeRules {
		c.rules = append(c.rules, compiledRule{attackType: rule.attackType, set: newSignatureSet(rule.signatures)})
	}

	for attackType, ports := range portDefaults {
		for _, port := range ports {
			c.ports[port] = attackType
		}
	}

	return c
}

// NoPayload is the result for a connection that sent nothing at all.
func NoPayload() Result {
	return Result{Type: types.ConnectionAttempt, Severity: types.SeverityLow}
}

// Classify is deterministic: it only depends on its arguments. The payload
// is the decoded capture; an empty string still gets the port fallback
// since some bytes were received.
func (c *Classifier) Classify(payload string, port int) Result {
	lowered := strings.ToLower(payload)

	res := Result{
		Type:      c.attackType(lowered, port),
		Severity:  types.SeverityLow,
		UserAgent: c.ExtractUserAgent(payload),
	}

	if sig, ok := c.high.find(lowered); ok {
		res.Severity = types.SeverityHigh
		res.Signature = sig
	} else if sig, ok := c.medium.find(lowered); ok {
		res.Severity = types.SeverityMedium
		res.Signature = sig
	}

	return res
}

func (c *Classifier) attackType(lowered string, port int) types.AttackType {
	for _, rule := range c.rules {
		if _, ok := rule.set.find(lowered); ok {
			return rule.attackType
		}
	}

	return c.PortDefault(port)
}

// PortDefault is the attack type assumed for a payload that matches no rule.
func (c *Classifier) PortDefault(port int) types.AttackType {
	if t, ok := c.ports[port]; ok {
		return t
	}

	return types.ConnectionAttempt
}

// ExtractUserAgent returns the trimmed value of the first User-Agent header line, if any.
func (c *Classifier) ExtractUserAgent(payload string) string {
	m := c.userAgent.FindStringSubmatch(payload)
	if len(m) < 2 {
		return ""
	}

	return strings.TrimSpace(m[1])
}
