// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package guid converts UUIDs to and from the mixed-endian on-disk GUID
// representation GPT uses.
package guid

import (
	"fmt"

	"github.com/google/uuid"
)

// Encode returns the on-disk form of the UUID: the first three groups are
// stored little-endian, the remaining bytes as-is.
func Encode(u uuid.UUID) []byte {
	return []byte{
		u[3], u[2], u[1], u[0],
		u[5], u[4],
		u[7], u[6],
		u[8], u[9],
		u[10], u[11], u[12], u[13], u[14], u[15],
	}
}

// Decode converts a 16-byte on-disk GUID back into a UUID.
func Decode(b []byte) (uuid.UUID, error) {
	if len(b) < 16 {
		return uuid.Nil, fmt.Errorf("GUID too short: %d bytes", len(b))
	}

	return uuid.FromBytes([]byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	})
}
