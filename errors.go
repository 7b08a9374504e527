package ixkv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned (wrapped into a *KeyError) by Load-style calls
	// when the key is absent. MayLoad never returns it.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIndexValue is returned (wrapped into a *KeyError) when a
	// unique index already holds the computed index key for another primary key.
	ErrDuplicateIndexValue = errors.New("duplicate index value")
)

// DataError reports bytes that do not match the expected encoding.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// KeyError ties an error to a namespace and an encoded key.
type KeyError struct {
	Namespace string
	Index     string
	Key       []byte
	Msg       string
	Err       error
}

func keyErrf(ns, idx string, key []byte, err error, format string, args ...any) error {
	var msg string
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &KeyError{ns, idx, key, msg, err}
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

func (e *KeyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Namespace)
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// IsNotFound is a shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
