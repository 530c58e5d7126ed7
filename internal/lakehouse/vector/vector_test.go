package vector

import "testing"

func TestComputePartitions(t *testing.T) {
	cases := []struct {
		rows int
		want int
	}{
		{rows: 1, want: 8},
		{rows: 64, want: 8},
		{rows: 256, want: 16},
		{rows: 1000, want: 32},
		{rows: 10000, want: 100},
	}
	for _, c := range cases {
		if got := computePartitions(c.rows); got != c.want {
			t.Errorf("computePartitions(%d) = %d, want %d", c.rows, got, c.want)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	if got := sanitizeIdent("cust-001.eu"); got != "cust_001_eu" {
		t.Errorf("sanitizeIdent returned %q", got)
	}
}
