package engine

import (
	"encoding/binary"
	"sort"

	"github.com/samber/lo"
)

const (
	CodeSegmentName  = "code"
	BssSegmentName   = "bss"
	StackSegmentName = "stack"

	CodeSegmentStart uint32 = 0x00400000
	CodeSegmentSize  uint32 = 0x00100000

	BssSegmentStart uint32 = 0x00500000
	BssSegmentSize  uint32 = 0x00010000

	StackSegmentStart uint32 = 0xFFF00000
	StackSegmentSize  uint32 = 0x00100000
)

// MemoryManager owns every mapped Segment and dispatches address/slice
// access to the segment that contains the address, mirroring
// memory_manager.py.
type MemoryManager struct {
	segments map[string]*Segment
}

func newMemoryManager() *MemoryManager {
	return &MemoryManager{segments: make(map[string]*Segment)}
}

func rangesCollide(s1, e1, s2, e2 uint32) bool {
	return s1 < e2 && s2 < e1
}

// Map adds a new segment, failing with ALLOC_FAIL on overlap with any
// existing segment - memory_manager.py:map's range_collide check.
func (m *MemoryManager) Map(name string, start, size uint32, perm Permission, init []byte) *ISAError {
	end := start + size
	for _, seg := range m.segments {
		if rangesCollide(start, end, seg.Start, seg.End()) {
			return newISAError(ErrAllocFail, "segment %q collides with %q", name, seg.Name)
		}
	}
	m.segments[name] = newSegment(name, start, size, perm, init)
	return nil
}

// Unmap removes a segment by name. Present in memory_manager.py as munmap;
// the distilled spec only describes map(), but §3 notes segments "may add/
// remove later through map/unmap", so this stays a public operation.
func (m *MemoryManager) Unmap(name string) *ISAError {
	if _, ok := m.segments[name]; !ok {
		return newISAError(ErrSegFault, "no such segment %q", name)
	}
	delete(m.segments, name)
	return nil
}

// Names lists mapped segment names, sorted for stable debug output.
func (m *MemoryManager) Names() []string {
	names := lo.Keys(m.segments)
	sort.Strings(names)
	return names
}

func (m *MemoryManager) findSegment(addr uint32) (*Segment, *ISAError) {
	for _, seg := range m.segments {
		if seg.contains(addr) {
			return seg, nil
		}
	}
	return nil, newISAError(ErrSegFault, "address 0x%08x is not mapped", addr)
}

// Get32 reads a little-endian u32 at addr, checking READ.
func (m *MemoryManager) Get32(addr uint32) (uint32, *ISAError) {
	seg, err := m.findSegment(addr)
	if err != nil {
		return 0, err
	}
	if addr+4 > seg.End() {
		return 0, newISAError(ErrSegFault, "word read at 0x%08x crosses segment boundary", addr)
	}
	bs, err := seg.ReadSlice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(bs), nil
}

// Set32 writes a little-endian u32 at addr, checking WRITE.
func (m *MemoryManager) Set32(addr, v uint32) *ISAError {
	seg, err := m.findSegment(addr)
	if err != nil {
		return err
	}
	if addr+4 > seg.End() {
		return newISAError(ErrSegFault, "word write at 0x%08x crosses segment boundary", addr)
	}
	var bs [4]byte
	binary.LittleEndian.PutUint32(bs[:], v)
	return seg.WriteSlice(addr, bs[:])
}

// ResetSegment overwrites a mapped segment's backing memory in place with
// content (zero-filling the remainder), ignoring the segment's permission
// bits - used only by Engine.execReinit to rewrite the code segment's bytes
// for EXEC without unmapping it or touching any other segment, matching
// engine.py's init() rewriting code memory directly rather than remapping.
func (m *MemoryManager) ResetSegment(name string, content []byte) *ISAError {
	seg, ok := m.segments[name]
	if !ok {
		return newISAError(ErrSegFault, "no such segment %q", name)
	}
	if uint32(len(content)) > seg.Size {
		return newISAError(ErrBadConfig, "content (%d bytes) exceeds segment %q size (%d bytes)", len(content), name, seg.Size)
	}
	seg.reset(content)
	return nil
}

// GetByte/SetByte expose single-byte access, checking READ/WRITE.
// Instruction fetch uses FetchExecByte instead.
func (m *MemoryManager) GetByte(addr uint32) (byte, *ISAError) {
	seg, err := m.findSegment(addr)
	if err != nil {
		return 0, err
	}
	return seg.ReadByte(addr)
}

func (m *MemoryManager) SetByte(addr uint32, v byte) *ISAError {
	seg, err := m.findSegment(addr)
	if err != nil {
		return err
	}
	return seg.WriteByte(addr, v)
}

// FetchExecByte reads one byte using the EXEC permission bit instead of
// READ, for decoding the instruction stream out of the code segment.
func (m *MemoryManager) FetchExecByte(addr uint32) (byte, *ISAError) {
	seg, err := m.findSegment(addr)
	if err != nil {
		return 0, err
	}
	return seg.ReadExecByte(addr)
}

// GetSlice/SetSlice read/write a run of bytes, validating that the whole
// range stays inside the owning segment.
func (m *MemoryManager) GetSlice(addr, length uint32) ([]byte, *ISAError) {
	seg, err := m.findSegment(addr)
	if err != nil {
		return nil, err
	}
	if addr+length > seg.End() {
		return nil, newISAError(ErrSegFault, "slice read at 0x%08x length %d crosses segment boundary", addr, length)
	}
	return seg.ReadSlice(addr, length)
}

func (m *MemoryManager) SetSlice(addr uint32, data []byte) *ISAError {
	seg, err := m.findSegment(addr)
	if err != nil {
		return err
	}
	if addr+uint32(len(data)) > seg.End() {
		return newISAError(ErrSegFault, "slice write at 0x%08x length %d crosses segment boundary", addr, len(data))
	}
	return seg.WriteSlice(addr, data)
}

// GetCString scans forward from addr within its owning segment for the
// first NUL byte, returning the bytes up to (not including) the NUL. If no
// NUL is found before the end of the segment, it returns the bytes up to
// end-of-segment - memory_manager.py:get_cstring's fallback.
func (m *MemoryManager) GetCString(addr uint32) ([]byte, *ISAError) {
	seg, err := m.findSegment(addr)
	if err != nil {
		return nil, err
	}
	idx := seg.Find([]byte{0}, addr, seg.End())
	if idx < 0 {
		return seg.ReadSlice(addr, seg.End()-addr)
	}
	return seg.ReadSlice(addr, uint32(idx)-addr)
}
