package resource

import "testing"

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name string
		s    Sample
		want Signal
	}{
		{"normal", Sample{MemoryPercent: 10, CPUPercent: 10, OpenFDs: 10}, SignalNormal},
		{"mem degraded", Sample{MemoryPercent: 85, CPUPercent: 10, OpenFDs: 10}, SignalDegraded},
		{"cpu critical", Sample{MemoryPercent: 10, CPUPercent: 99, OpenFDs: 10}, SignalCritical},
		{"fd critical", Sample{MemoryPercent: 10, CPUPercent: 10, OpenFDs: th.FDHardCount}, SignalCritical},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.s, th); got != c.want {
				t.Fatalf("classify(%+v) = %v, want %v", c.s, got, c.want)
			}
		})
	}
}
