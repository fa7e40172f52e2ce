package compiler

import "golang.org/x/xerrors"

// Compile-time error sentinels returned by Backend.Compile.
var (
	// ErrChoiceNotImplemented is returned for the reserved `choice` syntax.
	ErrChoiceNotImplemented = xerrors.New("choice is reserved syntax and is not implemented")

	// ErrUnknownData is returned when a dataset binding references a data
	// name with no corresponding declaration. Exec flow bindings are not
	// checked against the declarations.
	ErrUnknownData = xerrors.New("unknown data declaration")

	// ErrUnsupportedDataType is returned when a Data's Type is not one of
	// file, string, int, bool.
	ErrUnsupportedDataType = xerrors.New("unsupported data type")

	// ErrEmptyDestination is returned when a send/broadcast node has no
	// destination location.
	ErrEmptyDestination = xerrors.New("send/broadcast with no destination")

	// ErrUnknownPort is returned when a send references a port with no
	// local producer (no dataset binding, exec output, or recv binds it
	// first within the same location).
	ErrUnknownPort = xerrors.New("unknown port")
)
