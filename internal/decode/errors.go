package decode

import "fmt"

// EncryptionError indicates the document is encrypted and the supplied
// password (possibly empty) did not open it.
type EncryptionError struct {
	Path string
	Err  error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot decrypt %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("document is encrypted and no valid password was provided: %s", e.Path)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates the document path does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.Path)
}

// CorruptError indicates the document exists but its content could not be
// read as a usable PDF.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("unreadable document %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
