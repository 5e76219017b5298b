package decompiler

import "fmt"

// DecompileError is returned when the service processed a chunk but could
// not produce source for it. These outcomes are deterministic for a given
// service version and safe to cache.
type DecompileError struct {
	Message string
}

var _ error = (*DecompileError)(nil)

func (e DecompileError) Error() string {
	return e.Message
}

// TooLargeError is returned for a single chunk that exceeds the whole
// in-flight budget and can never be sent.
type TooLargeError struct {
	Length int
	Limit  int
}

var _ error = (*TooLargeError)(nil)

func (e TooLargeError) Error() string {
	return fmt.Sprintf("bytecode too large (%.2f mb) exceeds %dmb limit",
		float64(e.Length)/1024.0/1024.0, e.Limit/1024/1024)
}

// RejectedError is returned when the HTTP endpoint turned a request down
// with a message meant for the user (missing quota, bad key and the like).
type RejectedError struct {
	Status  int
	Message string
}

var _ error = (*RejectedError)(nil)

func (e RejectedError) Error() string {
	return e.Message
}
