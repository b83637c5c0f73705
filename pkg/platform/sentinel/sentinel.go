// Package sentinel names infrastructure facts shared by the issuance log and the
// collector stores. Stores wrap them; services translate them into dErrors codes
// (ErrCorrupt becomes store_corrupt, the rest internal_error).
package sentinel

import "errors"

var (
	// ErrNotFound: the backing file, key or table does not exist yet. Readers
	// treat it as an empty log.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt: the store exists but a record in it cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")
	// ErrUnavailable: the backend did not answer (connection, timeout).
	ErrUnavailable = errors.New("unavailable")
)
