// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gpt builds GUID partition tables along with their protective or
// hybrid MBR.
package gpt

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/google/uuid"

	"github.com/siderolabs/go-ptgen/internal/guid"
	"github.com/siderolabs/go-ptgen/internal/utf16"
	"github.com/siderolabs/go-ptgen/partitioning"
	"github.com/siderolabs/go-ptgen/partitioning/chs"
	"github.com/siderolabs/go-ptgen/partitioning/mbr"
)

const (
	// Signature is the GPT header signature, "EFI PART".
	Signature = 0x5452415020494645

	// Revision is the GPT revision the header declares.
	Revision = 0x00010000

	// HeaderSize is the number of meaningful header bytes; the rest of the
	// header sector is zero.
	HeaderSize = 92

	// EntrySize is the size of a single partition entry.
	EntrySize = 128

	// NumEntries is the number of entry slots in the table.
	NumEntries = partitioning.MaxGPTPartitions

	// NameSize is the width of the UTF-16LE name field in bytes.
	NameSize = 72

	// HeaderSector is the LBA of the primary header.
	HeaderSector = 1
)

// Protective-MBR CHS fields are computed against a fixed large geometry,
// not the configured one.
var pmbrGeometry = chs.Geometry{Heads: 254, Sectors: 63}

// Header holds the variable fields of a GPT header; signature, revision,
// size and entry dimensions are fixed constants.
type Header struct { //nolint:govet
	Self        uint64
	Alternate   uint64
	FirstUsable uint64
	LastUsable  uint64
	DiskGUID    uuid.UUID
	EntriesLBA  uint64

	EntriesChecksum uint32
}

// Encode serializes the header into a zero-padded sector. The header CRC
// is computed over the first HeaderSize bytes with its own field zeroed,
// and filled in last.
func (h Header) Encode() []byte {
	b := make([]byte, partitioning.SectorSize)

	binary.LittleEndian.PutUint64(b[0:8], Signature)
	binary.LittleEndian.PutUint32(b[8:12], Revision)
	binary.LittleEndian.PutUint32(b[12:16], HeaderSize)
	// 16:20 header CRC, filled last; 20:24 reserved
	binary.LittleEndian.PutUint64(b[24:32], h.Self)
	binary.LittleEndian.PutUint64(b[32:40], h.Alternate)
	binary.LittleEndian.PutUint64(b[40:48], h.FirstUsable)
	binary.LittleEndian.PutUint64(b[48:56], h.LastUsable)
	copy(b[56:72], guid.Encode(h.DiskGUID))
	binary.LittleEndian.PutUint64(b[72:80], h.EntriesLBA)
	binary.LittleEndian.PutUint32(b[80:84], NumEntries)
	binary.LittleEndian.PutUint32(b[84:88], EntrySize)
	binary.LittleEndian.PutUint32(b[88:92], h.EntriesChecksum)

	binary.LittleEndian.PutUint32(b[16:20], crc32.ChecksumIEEE(b[:HeaderSize]))

	return b
}

// DecodeHeader parses an emitted header and verifies its checksum.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: %d bytes", len(b))
	}

	if binary.LittleEndian.Uint64(b[0:8]) != Signature {
		return Header{}, fmt.Errorf("unexpected header signature %#x", binary.LittleEndian.Uint64(b[0:8]))
	}

	stored := binary.LittleEndian.Uint32(b[16:20])

	scratch := slices.Clone(b[:HeaderSize])
	for i := 16; i < 20; i++ {
		scratch[i] = 0
	}

	if checksum := crc32.ChecksumIEEE(scratch); checksum != stored {
		return Header{}, fmt.Errorf("header checksum mismatch: stored %#x, computed %#x", stored, checksum)
	}

	diskGUID, err := guid.Decode(b[56:72])
	if err != nil {
		return Header{}, err
	}

	return Header{
		Self:            binary.LittleEndian.Uint64(b[24:32]),
		Alternate:       binary.LittleEndian.Uint64(b[32:40]),
		FirstUsable:     binary.LittleEndian.Uint64(b[40:48]),
		LastUsable:      binary.LittleEndian.Uint64(b[48:56]),
		DiskGUID:        diskGUID,
		EntriesLBA:      binary.LittleEndian.Uint64(b[72:80]),
		EntriesChecksum: binary.LittleEndian.Uint32(b[88:92]),
	}, nil
}

// Entry is a single partition entry. LastLBA is inclusive.
type Entry struct { //nolint:govet
	Type uuid.UUID
	ID   uuid.UUID

	FirstLBA uint64
	LastLBA  uint64

	Attributes uint64

	Name string
}

func (e Entry) encode(b []byte) {
	if e == (Entry{}) {
		// unused slots stay zeroed
		return
	}

	copy(b[0:16], guid.Encode(e.Type))
	copy(b[16:32], guid.Encode(e.ID))
	binary.LittleEndian.PutUint64(b[32:40], e.FirstLBA)
	binary.LittleEndian.PutUint64(b[40:48], e.LastLBA)
	binary.LittleEndian.PutUint64(b[48:56], e.Attributes)
	utf16.Encode(b[56:56+NameSize], e.Name)
}

// DecodeEntry parses a single emitted partition entry.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < EntrySize {
		return Entry{}, fmt.Errorf("entry too short: %d bytes", len(b))
	}

	typeGUID, err := guid.Decode(b[0:16])
	if err != nil {
		return Entry{}, err
	}

	id, err := guid.Decode(b[16:32])
	if err != nil {
		return Entry{}, err
	}

	name, err := utf16.Decode(b[56 : 56+NameSize])
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Type:       typeGUID,
		ID:         id,
		FirstLBA:   binary.LittleEndian.Uint64(b[32:40]),
		LastLBA:    binary.LittleEndian.Uint64(b[40:48]),
		Attributes: binary.LittleEndian.Uint64(b[48:56]),
		Name:       name,
	}, nil
}

// Table is a fully built GPT: entry array, header geometry and the
// protective (or hybrid) MBR guarding it.
type Table struct { //nolint:govet
	DiskGUID uuid.UUID

	EntriesLBA   uint64
	FirstUsable  uint64
	LastUsable   uint64
	AlternateLBA uint64

	Entries [NumEntries]Entry

	Protective *mbr.Table
}

// Build assembles the GPT from the computed layout.
//
// Entry slots follow request indices. Partition GUIDs are derived from the
// disk GUID by offsetting its last byte with the 1-based slot number, which
// keeps them distinct but correlated without a random source.
func Build(cfg partitioning.Config, plan *partitioning.Plan) *Table {
	t := &Table{
		DiskGUID:    cfg.DiskGUID,
		EntriesLBA:  cfg.FirstEntrySector(),
		FirstUsable: cfg.FirstUsableSector(),
	}

	pmbr := &mbr.Table{
		Signature: cfg.Signature,
		Geometry:  pmbrGeometry,
	}

	hybridSlot := 1

	for _, part := range plan.Partitions {
		typeGUID, name := part.TypeGUID, part.Name

		if typeGUID == uuid.Nil {
			var defaultName string

			typeGUID, defaultName = TypeForMBR(part.Type)

			if name == "" {
				name = defaultName
			}
		}

		attrs := part.Attributes

		if part.Required {
			attrs |= AttrPlatformRequired
		}

		if cfg.IsActive(part) {
			attrs |= AttrLegacyBootable
		}

		t.Entries[part.Index] = Entry{
			Type:       typeGUID,
			ID:         derivedGUID(cfg.DiskGUID, part.Index+1),
			FirstLBA:   part.Start,
			LastLBA:    part.End - 1,
			Attributes: attrs,
			Name:       name,
		}

		// hybrid partitions mirror into the MBR slots left over by the
		// protective entry; extras are dropped
		if part.Hybrid && hybridSlot < mbr.NumEntries {
			pmbr.Entries[hybridSlot] = mbr.Entry{
				Active:   cfg.IsActive(part),
				Type:     part.Type,
				FirstLBA: part.Start,
				Sectors:  part.Sectors(),
			}

			hybridSlot++
		}
	}

	// an explicitly placed first partition leaves a gap after the entry
	// array; describe it with a filler entry in the last slot
	if len(plan.Partitions) > 0 {
		if first := plan.Partitions[0]; first.Index == 0 && first.Request.Start != 0 && first.Start > t.FirstUsable {
			t.Entries[NumEntries-1] = Entry{
				Type:     TypeBIOSBoot,
				ID:       derivedGUID(cfg.DiskGUID, NumEntries),
				FirstLBA: t.FirstUsable,
				LastLBA:  first.Start - 1,
			}
		}
	}

	last, ok := cfg.LastUsableSector()
	if !ok {
		last = plan.End - 1
	}

	t.LastUsable = last
	t.AlternateLBA = last + partitioning.EntryArraySectors + 1

	pmbr.Entries[0] = mbr.Entry{
		Type:     mbr.TypeProtective,
		FirstLBA: HeaderSector,
		Sectors:  t.AlternateLBA + 1 - HeaderSector,
	}

	t.Protective = pmbr

	return t
}

func derivedGUID(disk uuid.UUID, n int) uuid.UUID {
	disk[15] += byte(n)

	return disk
}

// EncodeEntries serializes the full fixed-size entry array.
func (t *Table) EncodeEntries() []byte {
	b := make([]byte, NumEntries*EntrySize)

	for i, entry := range t.Entries {
		entry.encode(b[i*EntrySize : (i+1)*EntrySize])
	}

	return b
}

// PrimaryHeader serializes the header placed at HeaderSector.
func (t *Table) PrimaryHeader() []byte {
	return t.header(HeaderSector, t.AlternateLBA, t.EntriesLBA)
}

// BackupHeader serializes the alternate header placed at the end of the
// disk, with self/alternate swapped and the entry array relocated just
// before it.
func (t *Table) BackupHeader() []byte {
	return t.header(t.AlternateLBA, HeaderSector, t.BackupEntriesLBA())
}

// BackupEntriesLBA returns the location of the backup entry array.
func (t *Table) BackupEntriesLBA() uint64 {
	return t.AlternateLBA - partitioning.EntryArraySectors
}

func (t *Table) header(self, alternate, entriesLBA uint64) []byte {
	return Header{
		Self:            self,
		Alternate:       alternate,
		FirstUsable:     t.FirstUsable,
		LastUsable:      t.LastUsable,
		DiskGUID:        t.DiskGUID,
		EntriesLBA:      entriesLBA,
		EntriesChecksum: crc32.ChecksumIEEE(t.EncodeEntries()),
	}.Encode()
}
