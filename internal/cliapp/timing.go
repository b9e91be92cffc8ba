package cliapp

import "time"

// timingTemplate captures the scheduler-tuning knobs spec.md §6's -T0..-T5
// flags resolve to. T3 is the default ("normal"); lower numbers slow the
// scan down for stealth, higher numbers trade stealth for speed.
type timingTemplate struct {
	ScanDelay      time.Duration
	ConnectTimeout time.Duration
	MaxParallelism int
}

var timingTemplates = map[int]timingTemplate{
	0: {ScanDelay: 5 * time.Second, ConnectTimeout: 10 * time.Second, MaxParallelism: 1},   // paranoid
	1: {ScanDelay: 1500 * time.Millisecond, ConnectTimeout: 8 * time.Second, MaxParallelism: 8}, // sneaky
	2: {ScanDelay: 400 * time.Millisecond, ConnectTimeout: 5 * time.Second, MaxParallelism: 32}, // polite
	3: {ScanDelay: 0, ConnectTimeout: 3 * time.Second, MaxParallelism: 256},                      // normal (default)
	4: {ScanDelay: 0, ConnectTimeout: 1500 * time.Millisecond, MaxParallelism: 512},              // aggressive
	5: {ScanDelay: 0, ConnectTimeout: 500 * time.Millisecond, MaxParallelism: 1024},              // insane
}

func resolveTiming(template int) timingTemplate {
	if t, ok := timingTemplates[template]; ok {
		return t
	}
	return timingTemplates[3]
}
