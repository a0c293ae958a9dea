// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package gpt

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/go-ptgen/partitioning"
)

// Well-known partition type GUIDs.
var (
	TypeEFISystem      = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	TypeBasicData      = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	TypeBIOSBoot       = uuid.MustParse("21686148-6449-6E6F-744E-656564454649")
	TypeChromeOSKernel = uuid.MustParse("FE3A2A5D-4F32-41A7-B725-ACCC3285A309")
	TypeLinuxFIT       = uuid.MustParse("CAE9BE83-B15F-49CC-863F-081B744A2D93")
	TypeLinuxFS        = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	TypeSiFiveSPL      = uuid.MustParse("5B193300-FC78-40CD-8002-E86C45580B47")
	TypeSiFiveUBoot    = uuid.MustParse("2E54B353-1271-4842-806F-E436D6AF6985")
)

// GPT partition attribute bits.
const (
	// AttrPlatformRequired marks a partition the platform cannot boot
	// without.
	AttrPlatformRequired = 1 << 0

	// AttrEFIIgnore tells the firmware to skip the partition. Reserved,
	// never set by the builder.
	AttrEFIIgnore = 1 << 1

	// AttrLegacyBootable marks the partition bootable for legacy BIOS.
	AttrLegacyBootable = 1 << 2

	// ChromeOS kernel defaults: priority=1, success=1.
	attrCrosPriority = 1 << 48
	attrCrosSuccess  = 1 << 56
)

// ParseType maps a partition type keyword to its type GUID and default
// attribute bits. Not every GPT type has a legacy MBR equivalent, hence
// the separate namespace.
func ParseType(keyword string) (uuid.UUID, uint64, error) {
	switch keyword {
	case "cros_kernel":
		return TypeChromeOSKernel, attrCrosPriority | attrCrosSuccess, nil
	case "sifiveu_spl":
		return TypeSiFiveSPL, 0, nil
	case "sifiveu_uboot":
		return TypeSiFiveUBoot, 0, nil
	}

	return uuid.Nil, 0, fmt.Errorf("%w: unknown GPT partition type %q", partitioning.ErrInvalidPartition, keyword)
}

// TypeForMBR returns the GPT type GUID matching a legacy MBR type byte,
// plus a default partition name where one is customary.
func TypeForMBR(legacyType byte) (uuid.UUID, string) {
	switch legacyType {
	case 0xEF:
		return TypeEFISystem, "EFI System Partition"
	case 0x83:
		return TypeLinuxFS, ""
	case 0x2E:
		return TypeLinuxFIT, ""
	}

	return TypeBasicData, ""
}
