// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import "fmt"

// Layout computes the sector range of every partition request, in order.
//
// The allocation cursor starts at the first usable sector and advances past
// each partition. Explicit starts may only move forward; without an explicit
// start the cursor is rounded up to the alignment unit, if one is set.
// MBR layout without alignment extends each partition to the next cylinder
// boundary so the table stays CHS-addressable.
//
// Layout is deterministic: identical inputs produce identical plans.
func Layout(cfg Config, requests []Request) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(requests) > cfg.Capacity() {
		return nil, fmt.Errorf("%w: %d requests for %d table slots", ErrTooManyPartitions, len(requests), cfg.Capacity())
	}

	bound, bounded := cfg.LastUsableSector()
	cursor := cfg.FirstUsableSector()

	plan := &Plan{
		Partitions: make([]Partition, 0, len(requests)),
	}

	for i, req := range requests {
		if req.Size == 0 {
			if cfg.SkipEmpty {
				continue
			}

			return nil, fmt.Errorf("%w: partition %d has zero size", ErrInvalidPartition, i)
		}

		start := cursor

		switch {
		case req.Start != 0:
			if req.Start < cursor {
				return nil, fmt.Errorf("%w: partition %d start %d is before sector %d", ErrOverlap, i, req.Start, cursor)
			}

			start = req.Start
		case cfg.Alignment != 0:
			start = (start + cfg.Alignment - 1) / cfg.Alignment * cfg.Alignment
		}

		end := start + req.Size

		if cfg.Kind == MBR && cfg.Alignment == 0 {
			end = cfg.Geometry.RoundToCylinder(end)
		}

		if bounded && end > bound+1 {
			return nil, fmt.Errorf("%w: partition %d ends at sector %d, past last usable sector %d", ErrOutOfSpace, i, end-1, bound)
		}

		plan.Partitions = append(plan.Partitions, Partition{
			Request: req,
			Index:   i,
			Start:   start,
			End:     end,
		})

		cursor = end
	}

	plan.End = cursor

	return plan, nil
}
