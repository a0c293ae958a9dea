// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package chs converts logical block addresses to the legacy
// cylinder-head-sector encoding used in MBR entries.
package chs

// Geometry is the legacy disk geometry CHS values are computed against.
type Geometry struct {
	Heads   uint64
	Sectors uint64
}

// Encode packs a sector index into the 3-byte CHS form: head, then the
// sector-in-track (low 6 bits) with the top 2 bits of the cylinder, then
// the low 8 bits of the cylinder.
//
// Cylinders beyond 1023 silently truncate, as the encoding always did.
func (g Geometry) Encode(sector uint64) [3]byte {
	s := sector%g.Sectors + 1
	sector /= g.Sectors
	h := sector % g.Heads
	c := sector / g.Heads

	return [3]byte{
		byte(h),
		byte(s) | byte(c>>2)&0xC0,
		byte(c),
	}
}

// RoundToCylinder advances the sector index to the next cylinder boundary.
// A sector already on a boundary still moves a full cylinder forward.
func (g Geometry) RoundToCylinder(sector uint64) uint64 {
	cylinder := g.Heads * g.Sectors

	return sector + cylinder - sector%cylinder
}
