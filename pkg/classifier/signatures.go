package classifier

import (
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/sentinelhq/sentinel/pkg/types"
)

var highSeveritySignatures = []string{
	"root", "admin", "/etc/passwd", "/etc/shadow",
	"union select", "drop table", "rm -rf",
	"wget ", "curl ", "nc -e", "bash -i",
	"<script", "javascript:", "eval(", "exec(",
}

var mediumSeveritySignatures = []string{
	"password", "login", "user", "pass", "auth", "select ", "../",
}

type typeRule struct {
	attackType types.AttackType
	signatures []string
}

// first match wins
var typeRules = []typeRule{
	{types.SQLInjection, []string{"select", "union", "drop", "insert", "update", "delete"}},
	{types.XSSAttempt, []string{"<script", "javascript:", "onerror", "onload"}},
	{types.DirectoryTraversal, []string{"../", `..\`}},
	{types.CommandInjection, []string{"wget", "curl", "nc ", "bash"}},
}

// port based fallback when the payload matches no rule
var portDefaults = map[types.AttackType][]int{
	types.BruteForce:    {22, 2222, 23, 2323, 21, 2121},
	types.WebScan:       {80, 8000, 443, 8443, 8080},
	types.DatabaseProbe: {3306, 33060},
}

// signatureSet answers "does the haystack contain any of these substrings" in one pass.
type signatureSet struct {
	patterns []string
	ac       ahocorasick.AhoCorasick
}

func newSignatureSet(patterns []string) signatureSet {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})

	return signatureSet{
		patterns: patterns,
		ac:       builder.Build(patterns),
	}
}

// find returns the leftmost matching signature.
func (s signatureSet) find(haystack string) (string, bool) {
	matches := s.ac.FindAll(haystack)
	if len(matches) == 0 {
		return "", false
	}

	return s.patterns[matches[0].Pattern()], true
}
