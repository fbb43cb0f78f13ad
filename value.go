// value.go
package r3

// Minimal tagged value model for the stack subsystem. The full language value
// representation lives elsewhere; the evaluator's memory layer only needs
// enough structure to store well-formed slots, distinguish its placeholder
// markers, and carry the thrown flag on label values.

import (
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------
// Tags and flags
// -----------------------------

type ValueTag uint8

const (
	// VTEnd terminates a slot run. It is never visible to user code; a scan
	// over chunk slots halts on it instead of consulting a stored length.
	VTEnd ValueTag = iota

	// VTTrash is the debug poison written into freshly carved or freshly
	// dropped slots. Observing it outside the narrow push-to-fill window is
	// a bug. It does not exist in release builds.
	VTTrash

	// VTPending marks an argument slot not yet supplied during fulfillment.
	// It is invisible to reflection and must not leak past fulfillment.
	VTPending

	// VTAbsence is a legitimate resting value: "no argument supplied", used
	// when a frame is fulfilled entirely by name.
	VTAbsence

	VTNone
	VTBool
	VTInt
	VTStr
	VTWord // label / symbol
	VTBlock
	VTFunc
	VTFrame // first-class reference into reified frame storage
)

const flagThrown uint8 = 1 << 0

// Value is a tagged cell. Pos is the series position for VTBlock/VTFrame
// views; growth-safe code addresses series by index, never by pointer.
type Value struct {
	Tag   ValueTag
	Data  any
	Pos   int
	flags uint8
}

// Block is the backing storage of an ordered value sequence. Reified frame
// storage is a Block as well; Inaccessible is set when such storage has been
// retired out from under outstanding references.
type Block struct {
	Vals         []Value
	Locked       bool
	FixedSize    bool
	Inaccessible bool
	Managed      bool
}

// -----------------------------
// Constructors
// -----------------------------

func None() Value            { return Value{Tag: VTNone} }
func Bool(b bool) Value      { return Value{Tag: VTBool, Data: b} }
func Int(n int64) Value      { return Value{Tag: VTInt, Data: n} }
func Str(s string) Value     { return Value{Tag: VTStr, Data: s} }
func Word(name string) Value { return Value{Tag: VTWord, Data: name} }
func Pending() Value         { return Value{Tag: VTPending} }
func Absence() Value         { return Value{Tag: VTAbsence} }

func BlockVal(b *Block) Value { return Value{Tag: VTBlock, Data: b} }
func FuncVal(f *Func) Value   { return Value{Tag: VTFunc, Data: f} }

func endVal() Value { return Value{Tag: VTEnd} }

func trash() Value {
	if debugChecks {
		return Value{Tag: VTTrash}
	}
	return endVal()
}

// -----------------------------
// Predicates / accessors
// -----------------------------

func (v Value) IsEnd() bool     { return v.Tag == VTEnd }
func (v Value) IsTrash() bool   { return v.Tag == VTTrash }
func (v Value) IsPending() bool { return v.Tag == VTPending }
func (v Value) IsAbsence() bool { return v.Tag == VTAbsence }
func (v Value) IsThrown() bool  { return v.flags&flagThrown != 0 }

func (v Value) AsBlock() *Block {
	if v.Tag != VTBlock && v.Tag != VTFrame {
		fail("expected block")
	}
	return v.Data.(*Block)
}

func (v Value) AsFunc() *Func {
	if v.Tag != VTFunc {
		fail("expected function")
	}
	return v.Data.(*Func)
}

// Equal is shallow identity: scalars by value, series and functions by
// backing pointer. Placeholders compare by tag alone.
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case VTEnd, VTTrash, VTPending, VTAbsence, VTNone:
		return true
	}
	return a.Data == b.Data
}

// wellFormed reports whether a slot may be observed by a collector scan:
// either a real tagged value or an explicit placeholder, never poison.
func wellFormed(v *Value) bool {
	return v.Tag != VTTrash
}

func (v Value) String() string {
	switch v.Tag {
	case VTEnd:
		return "~end~"
	case VTTrash:
		return "~trash~"
	case VTPending:
		return "~pending~"
	case VTAbsence:
		return "~absent~"
	case VTNone:
		return "none"
	case VTBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case VTInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case VTStr:
		return strconv.Quote(v.Data.(string))
	case VTWord:
		return v.Data.(string)
	case VTBlock:
		b := v.Data.(*Block)
		parts := make([]string, 0, len(b.Vals))
		for i := range b.Vals {
			parts = append(parts, b.Vals[i].String())
		}
		return "[" + strings.Join(parts, " ") + "]"
	case VTFunc:
		return "#[function! " + v.Data.(*Func).Name + "]"
	case VTFrame:
		b := v.Data.(*Block)
		if b.Inaccessible {
			return "#[frame! inaccessible]"
		}
		return fmt.Sprintf("#[frame! %d]", len(b.Vals))
	}
	return "~unknown~"
}
