// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package imager lays out partitions and writes the partition table
// metadata of a disk image to one or more output files.
package imager

import (
	"fmt"
	"io"
	"os"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"

	"github.com/siderolabs/go-ptgen/partitioning"
	"github.com/siderolabs/go-ptgen/partitioning/gpt"
	"github.com/siderolabs/go-ptgen/partitioning/mbr"
)

// Extent is the byte range of an emitted partition.
type Extent struct {
	Offset uint64
	Length uint64
}

// Report lists the byte extents of the emitted partitions in request
// order. Build scripts consume it to place partition content.
type Report []Extent

// Write prints the report, one value per line: offset then length per
// partition.
func (r Report) Write(w io.Writer) error {
	for _, e := range r {
		if _, err := fmt.Fprintf(w, "%d\n%d\n", e.Offset, e.Length); err != nil {
			return err
		}
	}

	return nil
}

// block is a byte run positioned inside an output file.
type block struct {
	offset int64
	data   []byte
}

type outputFile struct {
	path   string
	blocks []block
}

// Generate lays out the requested partitions, serializes the partition
// table and writes it to the output path. In split mode the output path
// is used as a prefix for the head/entry/tail files.
//
// Generation is all-or-nothing: the first failure aborts the run, and
// partially written files are left in place.
func Generate(cfg partitioning.Config, requests []partitioning.Request, output string, opts ...Option) (Report, error) {
	options := applyOptions(opts...)

	if output == "" {
		return nil, fmt.Errorf("%w: no output path", partitioning.ErrInvalidConfig)
	}

	plan, err := partitioning.Layout(cfg, requests)
	if err != nil {
		return nil, err
	}

	for _, part := range plan.Partitions {
		options.Logger.Debug("partition laid out",
			zap.Int("index", part.Index),
			zap.Uint64("start", part.Start*partitioning.SectorSize),
			zap.Uint64("end", part.End*partitioning.SectorSize),
			zap.Uint64("size", part.Sectors()*partitioning.SectorSize),
		)
	}

	var files []outputFile

	switch cfg.Kind {
	case partitioning.MBR:
		table := mbr.Build(cfg, plan)

		files = []outputFile{
			{path: output, blocks: []block{{0, table.Encode()}}},
		}
	case partitioning.GPT:
		files = gptFiles(cfg, gpt.Build(cfg, plan), output)
	}

	for _, f := range files {
		if err = writeFile(f); err != nil {
			return nil, err
		}

		options.Logger.Debug("image written", zap.String("path", f.path))
	}

	return xslices.Map(plan.Partitions, func(p partitioning.Partition) Extent {
		return Extent{
			Offset: p.Start * partitioning.SectorSize,
			Length: p.Sectors() * partitioning.SectorSize,
		}
	}), nil
}

// gptFiles positions the serialized table pieces into output files.
//
// A contiguous image carries everything; in split mode the head file gets
// the MBR and primary header, the entry array moves to a separate file
// when it doesn't directly follow the header, and the backup table forms
// the tail file.
func gptFiles(cfg partitioning.Config, table *gpt.Table, output string) []outputFile {
	entries := table.EncodeEntries()

	head := outputFile{
		path: output,
		blocks: []block{
			{0, table.Protective.Encode()},
			{gpt.HeaderSector * partitioning.SectorSize, table.PrimaryHeader()},
		},
	}

	if cfg.Split {
		head.path = output + ".start"
	}

	var middle *outputFile

	if !cfg.Split || table.EntriesLBA == partitioning.DefaultEntrySector {
		head.blocks = append(head.blocks, block{int64(table.EntriesLBA) * partitioning.SectorSize, entries})
	} else {
		middle = &outputFile{
			path:   output + ".entry",
			blocks: []block{{0, entries}},
		}
	}

	files := []outputFile{head}

	if middle != nil {
		files = append(files, *middle)
	}

	if !cfg.Backup {
		return files
	}

	if !cfg.Split {
		files[0].blocks = append(files[0].blocks,
			block{int64(table.BackupEntriesLBA()) * partitioning.SectorSize, entries},
			block{int64(table.AlternateLBA) * partitioning.SectorSize, table.BackupHeader()},
		)

		return files
	}

	return append(files, outputFile{
		path: output + ".end",
		blocks: []block{
			{0, entries},
			{partitioning.EntryArraySectors * partitioning.SectorSize, table.BackupHeader()},
		},
	})
}

// writeFile applies the blocks to a freshly truncated file. Gaps between
// blocks are left as holes and read back as zeros.
func writeFile(f outputFile) error {
	out, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	for _, b := range f.blocks {
		if _, err = out.WriteAt(b.data, b.offset); err != nil {
			out.Close() //nolint:errcheck

			return fmt.Errorf("failed to write %q: %w", f.path, err)
		}
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", f.path, err)
	}

	return nil
}
