// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package scanner

import (
	"math/big"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// ruleSpec is a stage-independent rule; the stage is stamped at call time.
type ruleSpec struct {
	name     string
	pattern  *regexp.Regexp
	severity Severity
	check    func(string) bool
}

var (
	specsOnce sync.Once
	specs     []ruleSpec
)

func ruleSpecs() []ruleSpec {
	specsOnce.Do(func() {
		specs = []ruleSpec{
			{
				name:     "payment_card_number",
				pattern:  regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
				severity: SeverityHigh,
				check:    luhnValid,
			},
			{
				name:     "us_ssn",
				pattern:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				severity: SeverityHigh,
				check:    ssnValid,
			},
			{
				name:     "iban",
				pattern:  regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`),
				severity: SeverityHigh,
				check:    ibanValid,
			},
			{
				name:     "aws_access_key",
				pattern:  regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
				severity: SeverityHigh,
			},
			{
				name:     "openai_api_key",
				pattern:  regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{20,}`),
				severity: SeverityHigh,
			},
			{
				name:     "anthropic_api_key",
				pattern:  regexp.MustCompile(`sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`),
				severity: SeverityHigh,
			},
			{
				name:     "google_api_key",
				pattern:  regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
				severity: SeverityHigh,
			},
			{
				name:     "github_pat",
				pattern:  regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
				severity: SeverityHigh,
			},
			{
				name:     "pem_private_key",
				pattern:  regexp.MustCompile(`-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
				severity: SeverityHigh,
			},
		}
	})
	return specs
}

// PrivacyRules returns the privacy and credential rules stamped with stage.
func PrivacyRules(stage Stage) []Rule {
	s := ruleSpecs()
	rules := make([]Rule, len(s))
	for i, spec := range s {
		rules[i] = Rule{
			Stage:    stage,
			Name:     spec.name,
			Pattern:  spec.pattern,
			Severity: spec.severity,
			Check:    spec.check,
		}
	}
	return rules
}

// DefaultRules returns the built-in rule set for both stages.
func DefaultRules() []Rule {
	return slices.Concat(PrivacyRules(StageAttacker), PrivacyRules(StageDefender))
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// luhnValid reports whether s, ignoring separators, passes the Luhn check.
func luhnValid(s string) bool {
	d := digitsOnly(s)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ssnValid rejects area, group and serial numbers the SSA never issues.
func ssnValid(s string) bool {
	d := digitsOnly(s)
	if len(d) != 9 {
		return false
	}
	area, group, serial := d[:3], d[3:5], d[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

// ibanValid applies the ISO 13616 mod-97 check.
func ibanValid(s string) bool {
	iban := strings.ReplaceAll(s, " ", "")
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var b strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteString(big.NewInt(int64(r-'A'+10)).String())
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(b.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
