package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrBindingIndexOutOfRange is returned when a slot index lies outside the table capacity.
	ErrBindingIndexOutOfRange = errors.New("renderer: binding index out of range")

	// ErrBindingTableSealed is returned when a sealed table is modified.
	ErrBindingTableSealed = errors.New("renderer: binding table sealed")
)

// BufferBinding is a device buffer bound to a binding table slot.
type BufferBinding struct {
	Label string

	// Address is the device address of the buffer, zero when the backend exposes none.
	Address uint64

	// Offset is the byte offset bound within the buffer.
	Offset uint64

	// Length is the buffer length in bytes.
	Length uint64

	// Handle is the backend buffer object.
	Handle any
}

// bindingTable is the implementation of the BindingTable interface.
type bindingTable struct {
	slots  []BufferBinding
	set    []bool
	sealed bool
}

// BindingTable maps fixed slot indices to buffers for one shader stage.
// A table is filled once and then sealed; a sealed table never changes.
type BindingTable interface {
	// Capacity returns the number of slots.
	//
	// Returns:
	//   - int: the slot count
	Capacity() int

	// SetAddress binds a buffer to a slot.
	//
	// Parameters:
	//   - index: the slot index
	//   - binding: the buffer to bind
	//
	// Returns:
	//   - error: ErrBindingIndexOutOfRange or ErrBindingTableSealed
	SetAddress(index int, binding BufferBinding) error

	// Binding returns the buffer bound to a slot.
	//
	// Parameters:
	//   - index: the slot index
	//
	// Returns:
	//   - BufferBinding: the bound buffer
	//   - bool: false if the slot is empty or out of range
	Binding(index int) (BufferBinding, bool)

	// Seal freezes the table.
	Seal()

	// Sealed reports whether the table has been sealed.
	//
	// Returns:
	//   - bool: true once Seal has been called
	Sealed() bool
}

var _ BindingTable = &bindingTable{}

// NewBindingTable creates an empty BindingTable with the given number of slots.
//
// Parameters:
//   - capacity: the number of slots
//
// Returns:
//   - BindingTable: the empty table
func NewBindingTable(capacity int) BindingTable {
	if capacity < 0 {
		capacity = 0
	}
	return &bindingTable{
		slots: make([]BufferBinding, capacity),
		set:   make([]bool, capacity),
	}
}

func (t *bindingTable) Capacity() int {
	return len(t.slots)
}

func (t *bindingTable) SetAddress(index int, binding BufferBinding) error {
	if t.sealed {
		return ErrBindingTableSealed
	}
	if index < 0 || index >= len(t.slots) {
		return fmt.Errorf("%w: %d of %d", ErrBindingIndexOutOfRange, index, len(t.slots))
	}
	t.slots[index] = binding
	t.set[index] = true
	return nil
}

func (t *bindingTable) Binding(index int) (BufferBinding, bool) {
	if index < 0 || index >= len(t.slots) || !t.set[index] {
		return BufferBinding{}, false
	}
	return t.slots[index], true
}

func (t *bindingTable) Seal() {
	t.sealed = true
}

func (t *bindingTable) Sealed() bool {
	return t.sealed
}
