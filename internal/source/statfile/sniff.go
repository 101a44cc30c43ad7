package statfile

import "bytes"

// SniffLen is the number of leading bytes Sniff needs.
const SniffLen = 32

var sasMagic = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xc2, 0xea, 0x81, 0x60,
	0xb3, 0x14, 0x11, 0xcf, 0xbd, 0x92, 0x08, 0x00,
	0x09, 0xc7, 0x31, 0x8c, 0x18, 0x1f, 0x10, 0x11,
}

// Sniff identifies a file from its leading bytes.
func Sniff(head []byte) (Kind, bool) {
	switch {
	case bytes.HasPrefix(head, sasMagic):
		return KindSAS, true
	case bytes.HasPrefix(head, []byte("<stata_dta>")):
		return KindStata, true
	case len(head) >= 3 && head[0] >= 0x71 && head[0] <= 0x73 && (head[1] == 0x01 || head[1] == 0x02) && head[2] == 0x01:
		// format 113-115: release, byte order, file type
		return KindStata, true
	}
	return KindAuto, false
}
