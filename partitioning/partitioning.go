// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partitioning implements sector layout planning for MBR and GPT
// partition tables.
package partitioning

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/go-ptgen/partitioning/chs"
)

const (
	// SectorSize is the logical sector size all layout math is based on.
	SectorSize = 512

	// MaxMBRPartitions is the number of primary MBR entries.
	MaxMBRPartitions = 4

	// MaxGPTPartitions is the number of GPT entry slots.
	MaxGPTPartitions = 128

	// EntryArraySectors is the size of the full GPT entry array in sectors.
	EntryArraySectors = MaxGPTPartitions * 128 / SectorSize

	// DefaultEntrySector is the LBA of the GPT entry array unless overridden.
	DefaultEntrySector = 2
)

// Kind selects the partition table format.
type Kind int

// Supported partition table kinds.
const (
	MBR Kind = iota
	GPT
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case MBR:
		return "mbr"
	case GPT:
		return "gpt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Config describes the disk a partition table is generated for.
//
// The zero value is not usable; at least Kind and (for MBR) Geometry
// must be set. Config is treated as immutable by the planner and the
// table builders.
type Config struct { //nolint:govet
	// Kind selects MBR or GPT output.
	Kind Kind

	// Geometry is the legacy CHS geometry, required for MBR tables.
	Geometry chs.Geometry

	// Alignment rounds non-explicit partition starts up to a multiple of
	// this many sectors. Zero disables alignment; MBR layout then falls
	// back to cylinder rounding.
	Alignment uint64

	// Active is the 1-based index of the partition to mark bootable.
	// Zero (or an index beyond the table) marks none.
	Active int

	// Signature is the 32-bit MBR disk signature.
	Signature uint32

	// DiskGUID identifies a GPT disk. Partition GUIDs are derived from it.
	DiskGUID uuid.UUID

	// DiskSize is the total disk size in sectors (GPT only). When nil or
	// pointing at zero, the disk is sized to the partitions.
	DiskSize *uint64

	// Backup enables generation of the alternate GPT table.
	Backup bool

	// Split emits the head and tail of the image as separate files so
	// partition content can be inserted in between.
	Split bool

	// EntrySector is the LBA of the primary GPT entry array.
	// Zero means DefaultEntrySector.
	EntrySector uint64

	// SkipEmpty silently omits zero-sized partition requests instead of
	// failing the layout.
	SkipEmpty bool
}

// Validate checks the configuration for contradictions before layout.
func (c Config) Validate() error {
	switch c.Kind {
	case MBR:
		if c.Geometry.Heads == 0 || c.Geometry.Sectors == 0 {
			return fmt.Errorf("%w: MBR geometry requires heads and sectors per track", ErrInvalidConfig)
		}
	case GPT:
		if c.EntrySector == 1 {
			return fmt.Errorf("%w: GPT entry array cannot start before sector %d", ErrInvalidConfig, DefaultEntrySector)
		}

		if c.DiskSize != nil && *c.DiskSize != 0 && *c.DiskSize <= 2*EntryArraySectors+3 {
			return fmt.Errorf("%w: GPT disk size must be larger than %d sectors", ErrInvalidConfig, 2*EntryArraySectors+3)
		}
	default:
		return fmt.Errorf("%w: unknown table kind %d", ErrInvalidConfig, int(c.Kind))
	}

	return nil
}

// Capacity returns the number of partition slots the table kind offers.
func (c Config) Capacity() int {
	if c.Kind == GPT {
		return MaxGPTPartitions
	}

	return MaxMBRPartitions
}

// FirstEntrySector returns the LBA of the primary GPT entry array.
func (c Config) FirstEntrySector() uint64 {
	if c.EntrySector == 0 {
		return DefaultEntrySector
	}

	return c.EntrySector
}

// FirstUsableSector returns the first sector available to partitions:
// one full track for MBR, the sector past the entry array for GPT.
func (c Config) FirstUsableSector() uint64 {
	if c.Kind == GPT {
		return c.FirstEntrySector() + EntryArraySectors
	}

	return c.Geometry.Sectors
}

// LastUsableSector returns the last sector available to partitions when
// the disk size is fixed. The second return value is false when the disk
// is sized to the partitions instead.
func (c Config) LastUsableSector() (uint64, bool) {
	if c.Kind != GPT || c.DiskSize == nil || *c.DiskSize == 0 {
		return 0, false
	}

	return *c.DiskSize - EntryArraySectors - 2, true
}

// IsActive reports whether the partition should be marked bootable.
func (c Config) IsActive(p Partition) bool {
	return c.Active == p.Index+1 || p.Request.Active
}

// Request describes a single partition to lay out.
//
// Requests are fully resolved: unit conversion and flag defaulting are
// the caller's concern.
type Request struct { //nolint:govet
	// Size is the partition size in sectors. Zero is invalid unless the
	// configuration enables SkipEmpty.
	Size uint64

	// Start is an explicit start sector. Zero lets the planner place the
	// partition at the running cursor.
	Start uint64

	// Type is the legacy MBR partition type byte.
	Type byte

	// TypeGUID is the GPT partition type. When zero, the GPT builder
	// derives it from the legacy Type byte.
	TypeGUID uuid.UUID

	// Name is the GPT partition name, at most 36 UTF-16 units.
	Name string

	// Required marks the partition as required by the platform (GPT
	// attribute bit 0).
	Required bool

	// Hybrid additionally mirrors the GPT partition into a legacy MBR
	// entry.
	Hybrid bool

	// Active marks the partition bootable regardless of Config.Active.
	Active bool

	// Attributes are raw GPT attribute bits merged into the entry.
	Attributes uint64
}

// Partition is a laid-out partition: the original request plus its
// computed sector range.
type Partition struct {
	Request

	// Index is the position of the originating request.
	Index int

	// Start is the first sector of the partition.
	Start uint64

	// End is the sector just past the partition.
	End uint64
}

// Sectors returns the partition length in sectors.
func (p Partition) Sectors() uint64 {
	return p.End - p.Start
}

// Plan is the result of a layout pass.
type Plan struct {
	// Partitions holds the emitted partitions in request order. Requests
	// omitted by SkipEmpty leave no entry here, but indices of the
	// remaining partitions are preserved.
	Partitions []Partition

	// End is the position of the allocation cursor after the last
	// partition.
	End uint64
}
