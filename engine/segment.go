package engine

import "bytes"

// Permission is a bitfield over {READ, WRITE, EXEC}, mirroring
// segment.py's SegmentPermission constants.
type Permission uint8

const (
	PermRead  Permission = 4
	PermWrite Permission = 2
	PermExec  Permission = 1
)

func (p Permission) Readable() bool  { return p&PermRead != 0 }
func (p Permission) Writable() bool  { return p&PermWrite != 0 }
func (p Permission) Executable() bool { return p&PermExec != 0 }

// Segment is a contiguous, permission-tagged byte range, addressed by
// absolute address with `start`-relative indexing into `mem`. Unlike the
// Python original's Segment.__getitem__ (whose permission check referenced
// `self.readable` as a bound method rather than calling it, so the check
// never actually fired), the permission bit is checked on every access here
// - spec.md §4.2 states plainly that "a failed check raises SEG_FAULT", so
// that is the behavior implemented, not the latent no-op from the source.
type Segment struct {
	Name       string
	Start      uint32
	Size       uint32
	Permission Permission
	mem        []byte
}

// End returns start+size, exclusive.
func (s *Segment) End() uint32 { return s.Start + s.Size }

func newSegment(name string, start, size uint32, perm Permission, init []byte) *Segment {
	mem := make([]byte, size)
	copy(mem, init)
	return &Segment{Name: name, Start: start, Size: size, Permission: perm, mem: mem}
}

func (s *Segment) contains(addr uint32) bool {
	return addr >= s.Start && addr < s.End()
}

// reset overwrites the segment's backing memory with content (zero-filling
// the remainder), bypassing the permission bits entirely - used for EXEC's
// code-segment rewrite, which must succeed even though the segment is not
// WRITABLE from the instruction set's point of view.
func (s *Segment) reset(content []byte) {
	for i := range s.mem {
		s.mem[i] = 0
	}
	copy(s.mem, content)
}

// ReadByte returns the byte at addr, checking the READ bit.
func (s *Segment) ReadByte(addr uint32) (byte, *ISAError) {
	if !s.Permission.Readable() {
		return 0, newISAError(ErrSegFault, "segment %q is not readable", s.Name)
	}
	return s.mem[addr-s.Start], nil
}

// WriteByte writes the byte at addr, checking the WRITE bit.
func (s *Segment) WriteByte(addr uint32, v byte) *ISAError {
	if !s.Permission.Writable() {
		return newISAError(ErrSegFault, "segment %q is not writable", s.Name)
	}
	s.mem[addr-s.Start] = v
	return nil
}

// ReadSlice returns a copy of length bytes starting at addr, checking READ.
// Bounds are validated by the caller (MemoryManager), which already knows
// the access stays within [start,end).
func (s *Segment) ReadSlice(addr, length uint32) ([]byte, *ISAError) {
	if !s.Permission.Readable() {
		return nil, newISAError(ErrSegFault, "segment %q is not readable", s.Name)
	}
	off := addr - s.Start
	out := make([]byte, length)
	copy(out, s.mem[off:off+length])
	return out, nil
}

// WriteSlice writes data starting at addr, checking WRITE.
func (s *Segment) WriteSlice(addr uint32, data []byte) *ISAError {
	if !s.Permission.Writable() {
		return newISAError(ErrSegFault, "segment %q is not writable", s.Name)
	}
	off := addr - s.Start
	copy(s.mem[off:], data)
	return nil
}

// ReadExecByte returns a byte for instruction fetch, checking EXEC instead of
// READ.
func (s *Segment) ReadExecByte(addr uint32) (byte, *ISAError) {
	if !s.Permission.Executable() {
		return 0, newISAError(ErrSegFault, "segment %q is not executable", s.Name)
	}
	return s.mem[addr-s.Start], nil
}

// Find performs a substring search within [searchStart, searchEnd) (absolute
// addresses, searchEnd exclusive) and returns an absolute address, or -1 if
// not found. This fixes the Python original's segment.py:find, which
// returned `result + self.start` unconditionally - turning a clean "not
// found" sentinel of -1 into `-1 + start` for any segment not based at 0.
// spec.md §4.2 states the contract as "returns an absolute address or -1",
// so -1 is preserved verbatim here.
func (s *Segment) Find(sub []byte, searchStart, searchEnd uint32) int64 {
	startOff := int(searchStart - s.Start)
	endOff := int(searchEnd - s.Start)
	if startOff < 0 {
		startOff = 0
	}
	if endOff > len(s.mem) {
		endOff = len(s.mem)
	}
	if startOff > endOff {
		return -1
	}
	idx := bytes.Index(s.mem[startOff:endOff], sub)
	if idx < 0 {
		return -1
	}
	return int64(s.Start) + int64(startOff) + int64(idx)
}
