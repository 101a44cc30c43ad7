package format

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Class
	}{
		{"", None},
		{"BEST12", None},
		{"BEST12.", None},
		{"$30", None},
		{"$1.", None},
		{"YYMMDD10", Date},
		{"yymmdd10.", Date},
		{"DATE9.", Date},
		{"MMDDYY", Date},
		{"E8601DA10.", Date},
		{"DATETIME22", DateTime},
		{"DATETIME22.3", DateTime},
		{" datetime ", DateTime},
		{"E8601DT19.", DateTime},
		{"TIME", Time},
		{"TIME8.", Time},
		{"HHMM5.", Time},
		{"%td", Date},
		{"%tdCCYY-NN-DD", Date},
		{"%-td", Date},
		{"%d", Date},
		{"%tc", DateTime},
		{"%tCDDmonCCYY_HH:MM:SS", DateTime},
		{"%9.0g", None},
		{"%12s", None},
		{"%tm", None},
	}
	for _, tc := range cases {
		if got := Classify(tc.raw); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

// TestClassifyIsPure verifies repeated calls agree.
func TestClassifyIsPure(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"YYMMDD10", "DATETIME22", "TIME", "garbage", "%tc"} {
		first := Classify(raw)
		for i := 0; i < 3; i++ {
			if got := Classify(raw); got != first {
				t.Fatalf("Classify(%q) changed: %v then %v", raw, first, got)
			}
		}
	}
}

func TestParseClassRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []Class{None, Date, DateTime, Time} {
		if got := ParseClass(c.String()); got != c {
			t.Fatalf("ParseClass(%q) = %v, want %v", c.String(), got, c)
		}
	}
}
