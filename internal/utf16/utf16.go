// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package utf16 encodes partition names into the fixed-width UTF-16LE
// field of a GPT entry.
package utf16

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Encode fills dst with the UTF-16LE encoding of the UTF-8 string s,
// truncating at the buffer and leaving the remainder zeroed.
//
// Only 1-, 2- and 3-byte UTF-8 sequences are handled. Any other lead byte
// produces a single '?' code unit and consumes exactly one input byte, so
// subsequent characters are not shifted.
func Encode(dst []byte, s string) {
	n := 0

	for i := 0; i < len(dst)/2; i++ {
		if n >= len(s) {
			return
		}

		var u uint16

		switch c := s[n]; {
		case c&0x80 == 0x00:
			u = uint16(c)
			n++
		case c&0xE0 == 0xC0:
			u = uint16(c&0x1F)<<6 | uint16(cont(s, n+1))
			n += 2
		case c&0xF0 == 0xE0:
			u = uint16(c&0x0F)<<12 | uint16(cont(s, n+1))<<6 | uint16(cont(s, n+2))
			n += 3
		default:
			u = '?'
			n++
		}

		binary.LittleEndian.PutUint16(dst[2*i:], u)
	}
}

func cont(s string, i int) byte {
	if i >= len(s) {
		return 0
	}

	return s[i] & 0x3F
}

// Decode converts a zero-padded UTF-16LE name field back into a string.
func Decode(b []byte) (string, error) {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}

	return string(bytes.TrimRight(decoded, "\x00")), nil
}
