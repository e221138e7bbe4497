package types

import (
	"fmt"
	"strconv"
)

// DeviceID identifies a single device on the control platform.
// It carries no structure beyond the string itself.
type DeviceID string

// IdentifierSpace describes the contiguous range of device identifiers
// the system considers. Identifiers are formed as Prefix + integer, with
// Start and End inclusive.
type IdentifierSpace struct {
	Prefix string
	Start  int
	End    int
}

// Size returns the number of identifiers in the space.
func (s IdentifierSpace) Size() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start + 1
}

// Enumerate generates every identifier in the space in ascending order.
func (s IdentifierSpace) Enumerate() []DeviceID {
	if s.End < s.Start {
		return nil
	}
	ids := make([]DeviceID, 0, s.Size())
	for i := s.Start; i <= s.End; i++ {
		ids = append(ids, DeviceID(s.Prefix+strconv.Itoa(i)))
	}
	return ids
}

// String describes the space for logs and CLI output.
func (s IdentifierSpace) String() string {
	return fmt.Sprintf("%s%d..%s%d", s.Prefix, s.Start, s.Prefix, s.End)
}
