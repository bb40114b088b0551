// Package common contains definitions of fundamental types shared by the
// file system core and the tools built on top of it.
package common

import "math"

// LogicalBlock is a zero-based block index within one file system object,
// in the order the object's extents define.
type LogicalBlock uint32

// PhysicalBlock is a zero-based block index within the image's data region.
type PhysicalBlock uint32

const InvalidLogicalBlock = LogicalBlock(math.MaxUint32)
const InvalidPhysicalBlock = PhysicalBlock(math.MaxUint32)

// Truncator is an interface for objects that support a Truncate() method. This
// method must behave just like [os.File.Truncate].
type Truncator interface {
	Truncate(size int64) error
}
