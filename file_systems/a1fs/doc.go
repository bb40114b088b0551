// Package a1fs implements a persistent, extent-based file system stored in a
// fixed-size disk image.
//
// The image holds, in block order: a reserved block, the superblock, a data
// bitmap with one bit per data block, a packed inode table, and the data
// region. Each inode tracks its blocks as extents; ten fit in the inode
// record and the rest spill into a single indirect block. Directories store
// fixed-size name/inode entries packed into whole blocks.
//
// Format initializes an empty file system on an image; Mount opens one and
// serves the path-based operations a user-space mount front-end needs. A
// mounted file system is single-threaded: callers dispatch operations
// serially, and nothing here locks.
package a1fs
