// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-ptgen/partitioning"
	"github.com/siderolabs/go-ptgen/partitioning/gpt"
	"github.com/siderolabs/go-ptgen/partitioning/mbr"
)

var testDiskGUID = uuid.MustParse("5452574F-2211-4433-5566-778899AABB00")

func TestBuild(t *testing.T) {
	cfg := partitioning.Config{
		Kind:     partitioning.GPT,
		DiskGUID: testDiskGUID,
		Active:   1,
	}

	plan, err := partitioning.Layout(cfg, []partitioning.Request{
		{Size: 8192, Type: 0x83, Name: "rootfs"},
	})
	require.NoError(t, err)

	table := gpt.Build(cfg, plan)

	assert.Equal(t, testDiskGUID, table.DiskGUID)
	assert.EqualValues(t, 2, table.EntriesLBA)
	assert.EqualValues(t, 34, table.FirstUsable)
	assert.EqualValues(t, 8225, table.LastUsable)
	assert.EqualValues(t, 8258, table.AlternateLBA)
	assert.EqualValues(t, 8226, table.BackupEntriesLBA())

	assert.Equal(t, gpt.Entry{
		Type:       gpt.TypeLinuxFS,
		ID:         uuid.MustParse("5452574F-2211-4433-5566-778899AABB01"),
		FirstLBA:   34,
		LastLBA:    8225,
		Attributes: gpt.AttrLegacyBootable,
		Name:       "rootfs",
	}, table.Entries[0])

	for _, entry := range table.Entries[1:] {
		assert.Equal(t, gpt.Entry{}, entry)
	}

	// the protective entry spans from the header through the alternate header
	require.NotNil(t, table.Protective)
	assert.Equal(t, mbr.Entry{Type: mbr.TypeProtective, FirstLBA: 1, Sectors: 8258}, table.Protective.Entries[0])
}

func TestBuildFixedDiskSize(t *testing.T) {
	cfg := partitioning.Config{
		Kind:     partitioning.GPT,
		DiskGUID: testDiskGUID,
		DiskSize: pointer.To(uint64(32768)),
	}

	plan, err := partitioning.Layout(cfg, []partitioning.Request{
		{Size: 8192},
	})
	require.NoError(t, err)

	table := gpt.Build(cfg, plan)

	assert.EqualValues(t, 32734, table.LastUsable)
	assert.EqualValues(t, 32767, table.AlternateLBA)
}

func TestBuildFiller(t *testing.T) {
	cfg := partitioning.Config{
		Kind:     partitioning.GPT,
		DiskGUID: testDiskGUID,
	}

	plan, err := partitioning.Layout(cfg, []partitioning.Request{
		{Size: 8192, Start: 2048},
	})
	require.NoError(t, err)

	table := gpt.Build(cfg, plan)

	// the gap between the entry array and the first partition is described
	// by a filler entry in the last slot
	assert.Equal(t, gpt.Entry{
		Type:     gpt.TypeBIOSBoot,
		ID:       uuid.MustParse("5452574F-2211-4433-5566-778899AABB80"),
		FirstLBA: 34,
		LastLBA:  2047,
	}, table.Entries[gpt.NumEntries-1])
}

func TestBuildHybrid(t *testing.T) {
	cfg := partitioning.Config{
		Kind:     partitioning.GPT,
		DiskGUID: testDiskGUID,
		Active:   1,
	}

	plan, err := partitioning.Layout(cfg, []partitioning.Request{
		{Size: 1000, Type: 0xEF, Hybrid: true},
		{Size: 1000, Type: 0x83, Hybrid: true},
		{Size: 1000, Type: 0x83, Hybrid: true},
		{Size: 1000, Type: 0x83, Hybrid: true},
	})
	require.NoError(t, err)

	table := gpt.Build(cfg, plan)

	assert.True(t, table.Protective.Entries[1].Active)
	assert.EqualValues(t, 0xEF, table.Protective.Entries[1].Type)
	assert.EqualValues(t, 34, table.Protective.Entries[1].FirstLBA)
	assert.EqualValues(t, 1000, table.Protective.Entries[1].Sectors)

	assert.EqualValues(t, 0x83, table.Protective.Entries[2].Type)
	assert.EqualValues(t, 0x83, table.Protective.Entries[3].Type)

	// only three MBR slots remain next to the protective entry, the fourth
	// hybrid request is dropped
	assert.EqualValues(t, 0xEE, table.Protective.Entries[0].Type)
}

func TestHeaderRoundTrip(t *testing.T) {
	header := gpt.Header{
		Self:            1,
		Alternate:       8258,
		FirstUsable:     34,
		LastUsable:      8225,
		DiskGUID:        testDiskGUID,
		EntriesLBA:      2,
		EntriesChecksum: 0xDEADBEEF,
	}

	b := header.Encode()
	require.Len(t, b, partitioning.SectorSize)

	assert.Equal(t, []byte("EFI PART"), b[0:8])
	assert.EqualValues(t, gpt.Revision, binary.LittleEndian.Uint32(b[8:12]))
	assert.EqualValues(t, gpt.HeaderSize, binary.LittleEndian.Uint32(b[12:16]))
	assert.EqualValues(t, gpt.NumEntries, binary.LittleEndian.Uint32(b[80:84]))
	assert.EqualValues(t, gpt.EntrySize, binary.LittleEndian.Uint32(b[84:88]))

	// GUID fields are middle-endian on disk
	assert.Equal(t, []byte{0x4F, 0x57, 0x52, 0x54, 0x11, 0x22, 0x33, 0x44}, b[56:64])

	decoded, err := gpt.DecodeHeader(b)
	require.NoError(t, err)

	assert.Equal(t, header, decoded)

	// the rest of the header sector stays zeroed
	for _, c := range b[gpt.HeaderSize:] {
		assert.Zero(t, c)
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	header := gpt.Header{DiskGUID: testDiskGUID}

	b := header.Encode()
	b[24] ^= 0xFF

	_, err := gpt.DecodeHeader(b)
	assert.ErrorContains(t, err, "checksum mismatch")

	b[0] = 0

	_, err = gpt.DecodeHeader(b)
	assert.ErrorContains(t, err, "signature")
}

func TestEntryRoundTrip(t *testing.T) {
	entry := gpt.Entry{
		Type:       gpt.TypeEFISystem,
		ID:         uuid.MustParse("5452574F-2211-4433-5566-778899AABB01"),
		FirstLBA:   34,
		LastLBA:    8225,
		Attributes: gpt.AttrPlatformRequired,
		Name:       "EFI System Partition",
	}

	table := &gpt.Table{}
	table.Entries[0] = entry

	b := table.EncodeEntries()
	require.Len(t, b, gpt.NumEntries*gpt.EntrySize)

	assert.Equal(t, []byte{0x28, 0x73, 0x2A, 0xC1, 0x1F, 0xF8, 0xD2, 0x11}, b[0:8])

	decoded, err := gpt.DecodeEntry(b[:gpt.EntrySize])
	require.NoError(t, err)

	assert.Equal(t, entry, decoded)

	// unused slots serialize as zeros
	for _, c := range b[gpt.EntrySize:] {
		assert.Zero(t, c)
	}
}

func TestHeaders(t *testing.T) {
	cfg := partitioning.Config{
		Kind:     partitioning.GPT,
		DiskGUID: testDiskGUID,
	}

	plan, err := partitioning.Layout(cfg, []partitioning.Request{
		{Size: 8192, Type: 0x83},
	})
	require.NoError(t, err)

	table := gpt.Build(cfg, plan)

	primary, err := gpt.DecodeHeader(table.PrimaryHeader())
	require.NoError(t, err)

	backup, err := gpt.DecodeHeader(table.BackupHeader())
	require.NoError(t, err)

	assert.EqualValues(t, 1, primary.Self)
	assert.EqualValues(t, table.AlternateLBA, primary.Alternate)
	assert.EqualValues(t, 2, primary.EntriesLBA)

	// the backup header swaps self/alternate and relocates the entry array
	assert.EqualValues(t, table.AlternateLBA, backup.Self)
	assert.EqualValues(t, 1, backup.Alternate)
	assert.EqualValues(t, table.BackupEntriesLBA(), backup.EntriesLBA)

	assert.Equal(t, primary.EntriesChecksum, backup.EntriesChecksum)
	assert.Equal(t, primary.FirstUsable, backup.FirstUsable)
	assert.Equal(t, primary.LastUsable, backup.LastUsable)
}

func TestParseType(t *testing.T) {
	typeGUID, attrs, err := gpt.ParseType("cros_kernel")
	require.NoError(t, err)

	assert.Equal(t, gpt.TypeChromeOSKernel, typeGUID)
	assert.NotZero(t, attrs)

	typeGUID, attrs, err = gpt.ParseType("sifiveu_spl")
	require.NoError(t, err)

	assert.Equal(t, gpt.TypeSiFiveSPL, typeGUID)
	assert.Zero(t, attrs)

	_, _, err = gpt.ParseType("bogus")
	assert.ErrorIs(t, err, partitioning.ErrInvalidPartition)
}

func TestTypeForMBR(t *testing.T) {
	typeGUID, name := gpt.TypeForMBR(0xEF)
	assert.Equal(t, gpt.TypeEFISystem, typeGUID)
	assert.Equal(t, "EFI System Partition", name)

	typeGUID, _ = gpt.TypeForMBR(0x83)
	assert.Equal(t, gpt.TypeLinuxFS, typeGUID)

	typeGUID, _ = gpt.TypeForMBR(0x0C)
	assert.Equal(t, gpt.TypeBasicData, typeGUID)
}
