// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partitioning

import "errors"

// Common errors.
var (
	// ErrInvalidConfig indicates missing or contradictory disk configuration.
	ErrInvalidConfig = errors.New("invalid disk configuration")

	// ErrInvalidPartition indicates a request which can never be laid out,
	// e.g. a zero-sized partition without the skip policy.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrOverlap indicates an explicit start before the allocation cursor.
	ErrOverlap = errors.New("partition overlap")

	// ErrOutOfSpace indicates an allocation past the last usable sector.
	ErrOutOfSpace = errors.New("out of disk space")

	// ErrTooManyPartitions indicates more requests than table slots.
	ErrTooManyPartitions = errors.New("too many partitions")

	// ErrInvalidIdentifier indicates an unparseable GUID string.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)
