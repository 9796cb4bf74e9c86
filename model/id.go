package model

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ID identifies an invocation, a completion (sharing the invocation's ID),
// or a flow. A fixed-size array so it is comparable and usable as a map
// key without boxing.
type ID [16]byte

// ZeroID is the absence of an ID.
var ZeroID ID

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// String renders the ID as hex.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// ParseID parses a hex-encoded ID.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, errInvalidIDLength
	}
	copy(id[:], b)
	return id, nil
}

var errInvalidIDLength = idLengthError{}

type idLengthError struct{}

func (idLengthError) Error() string { return "model: invalid id length" }
