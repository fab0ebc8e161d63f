package config

import "fmt"

// Kind classifies why the config could not be loaded.
type Kind int

const (
	KindRead Kind = iota
	KindNotFound
	KindPermission
	KindParse
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermission:
		return "permission denied"
	case KindParse:
		return "parse error"
	case KindInvalid:
		return "invalid"
	default:
		return "read error"
	}
}

// Error is returned by Load. It is always fatal at startup.
type Error struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("config: no config file found at %q", e.Path)
	case KindPermission:
		if e.Detail != "" {
			return fmt.Sprintf("config: insufficient permissions to read %q (%s)", e.Path, e.Detail)
		}
		return fmt.Sprintf("config: insufficient permissions to read %q", e.Path)
	case KindParse:
		return fmt.Sprintf("config: cannot decode %q: %v", e.Path, e.Err)
	case KindInvalid:
		return fmt.Sprintf("config: %q has configuration errors: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("config: error while reading %q: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
