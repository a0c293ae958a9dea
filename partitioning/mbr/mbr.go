// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mbr builds legacy Master Boot Record partition tables.
package mbr

import (
	"encoding/binary"

	"github.com/siderolabs/go-ptgen/partitioning"
	"github.com/siderolabs/go-ptgen/partitioning/chs"
)

const (
	// NumEntries is the number of primary partition entries.
	NumEntries = partitioning.MaxMBRPartitions

	// TypeProtective is the partition type marking a GPT disk off-limits
	// to legacy tools.
	TypeProtective = 0xEE

	entrySize = 16

	signatureOffset     = 440
	entriesOffset       = 446
	bootSignatureOffset = 510
)

// Entry is a single primary partition entry.
//
// The LBA fields are kept at full width; serialization truncates them to
// the 32 bits the format offers, wrapping silently for oversized values.
type Entry struct { //nolint:govet
	Active   bool
	Type     byte
	FirstLBA uint64
	Sectors  uint64
}

// Table is a legacy MBR partition table.
type Table struct { //nolint:govet
	Signature uint32
	Geometry  chs.Geometry
	Entries   [NumEntries]Entry
}

// Build assembles the primary MBR table from the computed layout.
// Partition slots follow request indices, so skipped requests leave
// zeroed entries.
func Build(cfg partitioning.Config, plan *partitioning.Plan) *Table {
	t := &Table{
		Signature: cfg.Signature,
		Geometry:  cfg.Geometry,
	}

	for _, part := range plan.Partitions {
		t.Entries[part.Index] = Entry{
			Active:   cfg.IsActive(part),
			Type:     part.Type,
			FirstLBA: part.Start,
			Sectors:  part.Sectors(),
		}
	}

	return t
}

// Encode serializes the table into a full boot sector: disk signature at
// offset 440, four 16-byte entries at 446 and the 0x55 0xAA signature at
// 510. The rest of the sector is left zeroed.
func (t *Table) Encode() []byte {
	b := make([]byte, partitioning.SectorSize)

	binary.LittleEndian.PutUint32(b[signatureOffset:], t.Signature)

	for i, entry := range t.Entries {
		entry.encode(b[entriesOffset+i*entrySize:], t.Geometry)
	}

	b[bootSignatureOffset] = 0x55
	b[bootSignatureOffset+1] = 0xAA

	return b
}

func (e Entry) encode(b []byte, g chs.Geometry) {
	if e == (Entry{}) {
		// unused slots stay zeroed
		return
	}

	if e.Active {
		b[0] = 0x80
	}

	start := g.Encode(e.FirstLBA)
	copy(b[1:4], start[:])

	b[4] = e.Type

	end := g.Encode(e.FirstLBA + e.Sectors - 1)
	copy(b[5:8], end[:])

	binary.LittleEndian.PutUint32(b[8:12], uint32(e.FirstLBA))
	binary.LittleEndian.PutUint32(b[12:16], uint32(e.Sectors))
}
