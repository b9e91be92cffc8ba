package osfingerprint

import (
	"bufio"
	"sort"
	"strconv"
	"strings"
)

// DB is a parsed set of Entry fingerprint records.
type DB struct {
	Entries []*Entry
}

// ParseDB parses a database in Nmap's nmap-os-db record shape:
//
//	Fingerprint <name>
//	Class <vendor> | <os family> | <os gen> | <device type>
//	CPE <cpe> [CPE <cpe> ...]
//	SEQ(<rule body>)
//	OPS(<rule body>)
//	...
//
// Adapted from os_parser.go's ParseOSDB/ParseRuleBody line-scanner, ported
// from the package's Chinese-language comments and map[string]string fields
// into this package's Entry/Rules shape. Blank lines and "#" comments are
// skipped; a line of the form "Name(Body)" attaches to the most recently
// seen Fingerprint line.
func ParseDB(content string) (*DB, error) {
	db := &DB{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	var cur *Entry

	flush := func() {
		if cur != nil {
			db.Entries = append(db.Entries, cur)
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Fingerprint "):
			flush()
			cur = &Entry{Name: strings.TrimPrefix(line, "Fingerprint "), Rules: make(map[string]string)}
		case strings.HasPrefix(line, "Class "):
			if cur != nil {
				cur.Class = strings.TrimPrefix(line, "Class ")
			}
		case strings.HasPrefix(line, "CPE "):
			if cur != nil {
				cur.CPE = append(cur.CPE, strings.TrimPrefix(line, "CPE "))
			}
		default:
			if cur == nil {
				continue
			}
			if idx := strings.Index(line, "("); idx > 0 && strings.HasSuffix(line, ")") {
				cur.Rules[line[:idx]] = line[idx+1 : len(line)-1]
			}
		}
	}
	flush()
	return db, scanner.Err()
}

// ParseRuleBody splits a rule body such as "R=Y%DF=Y%W=16A0" into its
// "%"-separated key=value pairs.
func ParseRuleBody(body string) map[string]string {
	rules := make(map[string]string)
	for _, part := range strings.Split(body, "%") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			rules[kv[0]] = kv[1]
		}
	}
	return rules
}

// Match scores target (a live probe result, with one rule body per test
// name it managed to observe) against every entry in the database and
// returns the best match plus up to five runners-up, or nil if the
// database is empty.
func (db *DB) Match(target map[string]string) *Result {
	type scored struct {
		entry *Entry
		score float64
	}
	var all []scored
	for _, e := range db.Entries {
		all = append(all, scored{e, calculateScore(target, e.Rules)})
	}
	if len(all) == 0 {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	res := &Result{BestMatch: all[0].entry, Accuracy: uint8(all[0].score)}
	for _, s := range all[1:] {
		if len(res.Alternatives) >= 5 {
			break
		}
		res.Alternatives = append(res.Alternatives, Alternative{Entry: s.entry, Score: uint8(s.score)})
	}
	return res
}

// calculateScore mirrors os_matcher.go's calculateScore: for every test name
// present in either side, a rule only counts towards totalTests when at
// least one side observed it, and only counts as matched when both sides
// have it and every key in the rule's pattern map matches the target's.
func calculateScore(target, rule map[string]string) float64 {
	totalTests, matchedTests := 0, 0
	for _, name := range TestNames {
		targetBody, hasTarget := target[name]
		ruleBody, hasRule := rule[name]
		if !hasTarget && !hasRule {
			continue
		}
		totalTests++
		if hasTarget != hasRule {
			continue
		}
		if matchTest(targetBody, ruleBody) {
			matchedTests++
		}
	}
	if totalTests == 0 {
		return 0
	}
	return (float64(matchedTests) / float64(totalTests)) * 100.0
}

func matchTest(targetBody, ruleBody string) bool {
	targetMap := ParseRuleBody(targetBody)
	ruleMap := ParseRuleBody(ruleBody)
	for key, rulePattern := range ruleMap {
		targetVal, ok := targetMap[key]
		if !ok {
			return false
		}
		if !matchValue(targetVal, rulePattern) {
			return false
		}
	}
	return true
}

// matchValue supports Nmap's "|" (OR of alternatives, recursive) and "-"
// (hex-numeric range) rule operators in addition to exact string equality.
func matchValue(targetVal, rulePattern string) bool {
	if strings.Contains(rulePattern, "|") {
		for _, opt := range strings.Split(rulePattern, "|") {
			if matchValue(targetVal, opt) {
				return true
			}
		}
		return false
	}
	if strings.Contains(rulePattern, "-") {
		parts := strings.SplitN(rulePattern, "-", 2)
		min, err1 := parseHexInt(parts[0])
		max, err2 := parseHexInt(parts[1])
		val, err3 := parseHexInt(targetVal)
		if err1 == nil && err2 == nil && err3 == nil {
			return val >= min && val <= max
		}
	}
	if strings.HasPrefix(rulePattern, ">") {
		limit, err := parseHexInt(rulePattern[1:])
		val, err2 := parseHexInt(targetVal)
		if err == nil && err2 == nil {
			return val > limit
		}
	}
	if strings.HasPrefix(rulePattern, "<") {
		limit, err := parseHexInt(rulePattern[1:])
		val, err2 := parseHexInt(targetVal)
		if err == nil && err2 == nil {
			return val < limit
		}
	}
	return targetVal == rulePattern
}

func parseHexInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 16, 64)
	return int(v), err
}
