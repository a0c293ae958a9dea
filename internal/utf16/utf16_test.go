// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package utf16_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-ptgen/internal/utf16"
)

func TestRoundTrip(t *testing.T) {
	for _, test := range []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ascii",
			input:    "EFI System Partition",
			expected: "EFI System Partition",
		},
		{
			name:     "two byte sequences",
			input:    "kernel-é",
			expected: "kernel-é",
		},
		{
			name:     "three byte sequences",
			input:    "data €中",
			expected: "data €中",
		},
		{
			name: "unsupported lead byte replaced without shifting",
			// a single '?' per offending byte, one input byte consumed each
			input:    "a\xF0b",
			expected: "a?b",
		},
		{
			name:     "four byte sequence becomes one marker per byte",
			input:    "a\U0001F600b",
			expected: "a????b",
		},
		{
			name:     "truncated to the field width",
			input:    strings.Repeat("x", 40),
			expected: strings.Repeat("x", 36),
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf := make([]byte, 72)
			utf16.Encode(buf, test.input)

			decoded, err := utf16.Decode(buf)
			require.NoError(t, err)

			assert.Equal(t, test.expected, decoded)
		})
	}
}

func TestEncodeLeavesTailZeroed(t *testing.T) {
	buf := make([]byte, 72)
	utf16.Encode(buf, "boot")

	for _, c := range buf[8:] {
		assert.Zero(t, c)
	}
}
