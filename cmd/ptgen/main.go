// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// ptgen generates MBR and GPT partition table images for build tooling.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/go-ptgen/imager"
	"github.com/siderolabs/go-ptgen/partitioning"
	"github.com/siderolabs/go-ptgen/partitioning/chs"
	"github.com/siderolabs/go-ptgen/partitioning/gpt"
)

// defaultDiskGUID is used unless --guid is given; its first four bytes
// spell the default disk signature.
const defaultDiskGUID = "5452574F-2211-4433-5566-778899AABB00"

var (
	output      string
	useGPT      bool
	heads       uint64
	sectors     uint64
	alignKiB    uint64
	active      int
	signature   uint32
	diskGUID    string
	entryOffset string
	diskSize    string
	split       bool
	ignoreEmpty bool
	verbose     bool
	parts       []string
)

var rootCmd = &cobra.Command{
	Use:   "ptgen",
	Short: "Generate MBR/GPT partition table images",
	Long: `ptgen computes the sector layout for an ordered list of partitions and
writes the partition table metadata of a disk image. For every emitted
partition it prints the byte offset and byte length, one value per line.

Partition specs take the form

  size[@start][:modifier[=value]]...

where size and start are in KiB unless suffixed with K, M or G, and
modifiers are type=<hex byte>, gpt-type=<keyword>, name=<label>,
attr=<bits>, required, hybrid and active. The legacy type byte carries
over to subsequent partitions until re-specified.

Examples:

  # two MBR partitions, first one bootable
  ptgen --heads 16 -s 63 -o mbr.img -p 16M:type=83 -p 100M

  # GPT image with an EFI system partition mirrored into the MBR
  ptgen -g -o gpt.img -p 32M:type=ef:hybrid -p 512M:name=rootfs`,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output image path (prefix in split mode)")
	rootCmd.Flags().BoolVarP(&useGPT, "gpt", "g", false, "generate a GPT instead of an MBR table")
	rootCmd.Flags().Uint64Var(&heads, "heads", 0, "number of heads (MBR geometry)")
	rootCmd.Flags().Uint64VarP(&sectors, "sectors", "s", 0, "sectors per track (MBR geometry)")
	rootCmd.Flags().Uint64VarP(&alignKiB, "align", "l", 0, "partition alignment in KiB, 0 to disable")
	rootCmd.Flags().IntVarP(&active, "active", "a", 1, "1-based index of the bootable partition, 0 for none")
	rootCmd.Flags().Uint32VarP(&signature, "signature", "S", 0x5452574F, "32-bit disk signature")
	rootCmd.Flags().StringVarP(&diskGUID, "guid", "G", "", "disk GUID")
	rootCmd.Flags().StringVarP(&entryOffset, "entry-offset", "e", "", "offset of the GPT entry array (size with K/M/G suffix)")
	rootCmd.Flags().StringVarP(&diskSize, "disk-size", "d", "", "total GPT disk size, 0 to size the disk to the partitions; enables the backup table")
	rootCmd.Flags().BoolVarP(&split, "split", "b", false, "emit head and tail of the image as separate files")
	rootCmd.Flags().BoolVarP(&ignoreEmpty, "ignore-empty", "n", false, "silently skip zero-sized partitions")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log the computed layout to stderr")
	rootCmd.Flags().StringArrayVarP(&parts, "part", "p", nil, "partition spec size[@start][:modifier]..., repeatable")
}

func run() error {
	logger := zap.NewNop()

	if verbose {
		var err error

		if logger, err = zap.NewDevelopmentConfig().Build(); err != nil {
			return err
		}
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	requests, err := buildRequests(parts)
	if err != nil {
		return err
	}

	report, err := imager.Generate(cfg, requests, output, imager.WithLogger(logger))
	if err != nil {
		return err
	}

	return report.Write(os.Stdout)
}

func buildConfig() (partitioning.Config, error) {
	cfg := partitioning.Config{
		Kind:      partitioning.MBR,
		Geometry:  chs.Geometry{Heads: heads, Sectors: sectors},
		Alignment: alignKiB * 2,
		Active:    active,
		Signature: signature,
		Split:     split,
		SkipEmpty: ignoreEmpty,
	}

	if useGPT {
		cfg.Kind = partitioning.GPT
	}

	guidString := diskGUID
	if guidString == "" {
		guidString = defaultDiskGUID
	}

	var err error

	if cfg.DiskGUID, err = uuid.Parse(guidString); err != nil {
		return cfg, fmt.Errorf("%w: %v", partitioning.ErrInvalidIdentifier, err)
	}

	if entryOffset != "" {
		kib, err := parseSize(entryOffset)
		if err != nil {
			return cfg, fmt.Errorf("invalid entry offset: %w", err)
		}

		cfg.EntrySector = kib * 2

		if cfg.EntrySector < partitioning.DefaultEntrySector {
			return cfg, fmt.Errorf("%w: GPT entry offset must be at least %d KiB",
				partitioning.ErrInvalidConfig, partitioning.DefaultEntrySector/2)
		}
	}

	if diskSize != "" {
		kib, err := parseSize(diskSize)
		if err != nil {
			return cfg, fmt.Errorf("invalid disk size: %w", err)
		}

		// a zero disk size means "size the disk to the partitions"
		cfg.DiskSize = pointer.To(kib * 2)
		cfg.Backup = true
	}

	if split {
		cfg.Backup = true
	}

	return cfg, nil
}

func buildRequests(specs []string) ([]partitioning.Request, error) {
	requests := make([]partitioning.Request, 0, len(specs))

	// the legacy type byte is deliberately inherited by later partitions
	lastType := byte(0x83)

	for _, spec := range specs {
		req, err := parseRequest(spec, &lastType)
		if err != nil {
			return nil, fmt.Errorf("invalid partition spec %q: %w", spec, err)
		}

		requests = append(requests, req)
	}

	return requests, nil
}

func parseRequest(spec string, lastType *byte) (partitioning.Request, error) {
	fields := strings.Split(spec, ":")

	req := partitioning.Request{
		Type: *lastType,
	}

	sizeField, startField, hasStart := strings.Cut(fields[0], "@")

	size, err := parseSize(sizeField)
	if err != nil {
		return req, err
	}

	req.Size = size * 2

	if hasStart {
		start, err := parseSize(startField)
		if err != nil {
			return req, err
		}

		req.Start = start * 2
	}

	for _, field := range fields[1:] {
		key, value, _ := strings.Cut(field, "=")

		switch key {
		case "type":
			v, err := strconv.ParseUint(value, 16, 8)
			if err != nil {
				return req, fmt.Errorf("invalid type byte %q", value)
			}

			req.Type = byte(v)
			*lastType = byte(v)
		case "gpt-type":
			typeGUID, attrs, err := gpt.ParseType(value)
			if err != nil {
				return req, err
			}

			req.TypeGUID = typeGUID
			req.Attributes |= attrs
		case "name":
			req.Name = value
		case "attr":
			v, err := strconv.ParseUint(value, 0, 64)
			if err != nil {
				return req, fmt.Errorf("invalid attribute bits %q", value)
			}

			req.Attributes |= v
		case "required":
			req.Required = true
		case "hybrid":
			req.Hybrid = true
		case "active":
			req.Active = true
		default:
			return req, fmt.Errorf("unknown modifier %q", key)
		}
	}

	return req, nil
}

// parseSize parses a size argument: a plain number is KiB, with an
// optional K, M or G suffix.
func parseSize(s string) (uint64, error) {
	var exp uint

	switch {
	case s == "":
		return 0, fmt.Errorf("empty size")
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		s, exp = s[:len(s)-1], 10
	case strings.HasSuffix(s, "g"), strings.HasSuffix(s, "G"):
		s, exp = s[:len(s)-1], 20
	}

	value, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	return value << exp, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
