package statfile

import "testing"

func TestSniff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		head []byte
		want Kind
		ok   bool
	}{
		{name: "sas", head: append(append([]byte{}, sasMagic...), 0x33, 0x22), want: KindSAS, ok: true},
		{name: "stata xml header", head: []byte("<stata_dta><header><release>118"), want: KindStata, ok: true},
		{name: "stata 114 little endian", head: []byte{0x72, 0x02, 0x01, 0x00}, want: KindStata, ok: true},
		{name: "truncated sas", head: sasMagic[:10]},
		{name: "csv", head: []byte("a,b,c\n1,2,3\n")},
		{name: "empty"},
	}
	for _, tc := range cases {
		got, ok := Sniff(tc.head)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: Sniff = %q, %v; want %q, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
