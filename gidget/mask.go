package gidget

import "strings"

// Mask is the 32-bit bitmap of inotify event classes used both in a trick's
// configured mask and in a decoded event's triggered-classes field.
type Mask uint32

// Single-bit event classes, numbered as inotify(7) numbers them (bit 0 is
// the least significant bit).
const (
	MaskAccess        Mask = 1 << 0  // IN_ACCESS
	MaskModify        Mask = 1 << 1  // IN_MODIFY
	MaskAttrib        Mask = 1 << 2  // IN_ATTRIB
	MaskCloseWrite    Mask = 1 << 3  // IN_CLOSE_WRITE
	MaskCloseNoWrite  Mask = 1 << 4  // IN_CLOSE_NOWRITE
	MaskOpen          Mask = 1 << 5  // IN_OPEN
	MaskMovedFrom     Mask = 1 << 6  // IN_MOVED_FROM
	MaskMovedTo       Mask = 1 << 7  // IN_MOVED_TO
	MaskCreate        Mask = 1 << 8  // IN_CREATE
	MaskDelete        Mask = 1 << 9  // IN_DELETE
	MaskDeleteSelf    Mask = 1 << 10 // IN_DELETE_SELF
	MaskMoveSelf      Mask = 1 << 11 // IN_MOVE_SELF
	MaskUnmount       Mask = 1 << 13 // IN_UNMOUNT
	MaskQueueOverflow Mask = 1 << 14 // IN_Q_OVERFLOW
	MaskIgnored       Mask = 1 << 15 // IN_IGNORED
	MaskOnlyDir       Mask = 1 << 24 // IN_ONLYDIR
	MaskDontFollow    Mask = 1 << 25 // IN_DONT_FOLLOW
	MaskAdd           Mask = 1 << 29 // IN_MASK_ADD
	MaskIsDir         Mask = 1 << 30 // IN_ISDIR
	MaskOneShot       Mask = 1 << 31 // IN_ONESHOT
)

// Synthetic masks combining more than one bit, as inotify(7) defines them.
const (
	MaskClose Mask = MaskCloseWrite | MaskCloseNoWrite
	MaskMove  Mask = MaskMovedFrom | MaskMovedTo
)

// maskAllKnown is the union of every single-bit class gidget recognizes. A
// bit set outside this union means the kernel has grown event classes gidget
// does not yet know the name of.
const maskAllKnown = MaskAccess | MaskModify | MaskAttrib | MaskCloseWrite |
	MaskCloseNoWrite | MaskOpen | MaskMovedFrom | MaskMovedTo | MaskCreate |
	MaskDelete | MaskDeleteSelf | MaskMoveSelf | MaskUnmount |
	MaskQueueOverflow | MaskIgnored | MaskOnlyDir | MaskDontFollow |
	MaskAdd | MaskIsDir | MaskOneShot

var maskNames = []struct {
	bit  Mask
	name string
}{
	{MaskAccess, "IN_ACCESS"},
	{MaskModify, "IN_MODIFY"},
	{MaskAttrib, "IN_ATTRIB"},
	{MaskCloseWrite, "IN_CLOSE_WRITE"},
	{MaskCloseNoWrite, "IN_CLOSE_NOWRITE"},
	{MaskOpen, "IN_OPEN"},
	{MaskMovedFrom, "IN_MOVED_FROM"},
	{MaskMovedTo, "IN_MOVED_TO"},
	{MaskCreate, "IN_CREATE"},
	{MaskDelete, "IN_DELETE"},
	{MaskDeleteSelf, "IN_DELETE_SELF"},
	{MaskMoveSelf, "IN_MOVE_SELF"},
	{MaskUnmount, "IN_UNMOUNT"},
	{MaskQueueOverflow, "IN_Q_OVERFLOW"},
	{MaskIgnored, "IN_IGNORED"},
	{MaskOnlyDir, "IN_ONLYDIR"},
	{MaskDontFollow, "IN_DONT_FOLLOW"},
	{MaskAdd, "IN_MASK_ADD"},
	{MaskIsDir, "IN_ISDIR"},
	{MaskOneShot, "IN_ONESHOT"},
}

// Has reports whether every bit set in other is also set in m.
func (m Mask) Has(other Mask) bool { return m&other == other }

// String renders m as a space-separated list of mnemonic bit names,
// preceded by the two synthetic names (IN_CLOSE, IN_MOVE) when applicable,
// and followed by a note about any unrecognized bits. It never returns an
// empty string.
func (m Mask) String() string {
	var parts []string

	if m.Has(MaskClose) {
		parts = append(parts, "IN_CLOSE")
	}
	if m.Has(MaskMove) {
		parts = append(parts, "IN_MOVE")
	}
	for _, mn := range maskNames {
		if m&mn.bit != 0 {
			parts = append(parts, mn.name)
		}
	}

	if unknown := m &^ maskAllKnown; unknown != 0 {
		parts = append(parts, "UNRECOGNIZED("+hex8(uint32(unknown))+")")
	}

	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, " ")
}

// DecodedMask is a field-by-field breakdown of a Mask, used by verbose
// diagnostics. It exists so the bit<->name table has a round-trippable
// representation distinct from the raw integer: Decode followed by Encode
// must reproduce the original Mask exactly, which is how the bit table
// itself gets exercised by tests rather than just identity on an integer.
type DecodedMask struct {
	Access, Modify, Attrib               bool
	CloseWrite, CloseNoWrite             bool
	Open                                 bool
	MovedFrom, MovedTo                   bool
	Create, Delete, DeleteSelf, MoveSelf bool
	Unmount, QueueOverflow, Ignored      bool
	OnlyDir, DontFollow, MaskAdd, IsDir  bool
	OneShot                              bool
	Unrecognized                         Mask
}

// Decode breaks m down into its named fields.
func Decode(m Mask) DecodedMask {
	return DecodedMask{
		Access:        m&MaskAccess != 0,
		Modify:        m&MaskModify != 0,
		Attrib:        m&MaskAttrib != 0,
		CloseWrite:    m&MaskCloseWrite != 0,
		CloseNoWrite:  m&MaskCloseNoWrite != 0,
		Open:          m&MaskOpen != 0,
		MovedFrom:     m&MaskMovedFrom != 0,
		MovedTo:       m&MaskMovedTo != 0,
		Create:        m&MaskCreate != 0,
		Delete:        m&MaskDelete != 0,
		DeleteSelf:    m&MaskDeleteSelf != 0,
		MoveSelf:      m&MaskMoveSelf != 0,
		Unmount:       m&MaskUnmount != 0,
		QueueOverflow: m&MaskQueueOverflow != 0,
		Ignored:       m&MaskIgnored != 0,
		OnlyDir:       m&MaskOnlyDir != 0,
		DontFollow:    m&MaskDontFollow != 0,
		MaskAdd:       m&MaskAdd != 0,
		IsDir:         m&MaskIsDir != 0,
		OneShot:       m&MaskOneShot != 0,
		Unrecognized:  m &^ maskAllKnown,
	}
}

// Encode rebuilds a Mask from its decoded fields. Encode(Decode(m)) == m for
// every m, including any unrecognized high bits Decode preserved verbatim.
func (d DecodedMask) Encode() Mask {
	var m Mask
	set := func(b bool, bit Mask) {
		if b {
			m |= bit
		}
	}
	set(d.Access, MaskAccess)
	set(d.Modify, MaskModify)
	set(d.Attrib, MaskAttrib)
	set(d.CloseWrite, MaskCloseWrite)
	set(d.CloseNoWrite, MaskCloseNoWrite)
	set(d.Open, MaskOpen)
	set(d.MovedFrom, MaskMovedFrom)
	set(d.MovedTo, MaskMovedTo)
	set(d.Create, MaskCreate)
	set(d.Delete, MaskDelete)
	set(d.DeleteSelf, MaskDeleteSelf)
	set(d.MoveSelf, MaskMoveSelf)
	set(d.Unmount, MaskUnmount)
	set(d.QueueOverflow, MaskQueueOverflow)
	set(d.Ignored, MaskIgnored)
	set(d.OnlyDir, MaskOnlyDir)
	set(d.DontFollow, MaskDontFollow)
	set(d.MaskAdd, MaskAdd)
	set(d.IsDir, MaskIsDir)
	set(d.OneShot, MaskOneShot)
	m |= d.Unrecognized
	return m
}

// Hex renders m the way the command line passed to a trick's script
// does: an 8-digit, 0x-prefixed hexadecimal literal.
func (m Mask) Hex() string { return hex8(uint32(m)) }

func hex8(v uint32) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 10)
	buf[0], buf[1] = '0', 'x'
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		buf[2+i] = digits[(v>>shift)&0xf]
	}
	return string(buf)
}
