package host

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Parameters
// --------------------------------------------------------------------------

// ParamType distinguishes plain scalars from store backed hashes
type ParamType uint8

const (
	ParamScalar ParamType = iota
	ParamSpecialHash
)

// Param is one named variable of the namespace
type Param struct {
	Name     string
	Type     ParamType
	Value    string       // scalars only
	ReadOnly bool         // scalars only
	Hash     store.IStore // special hashes only
}

// Namespace is the parameter table of the host. It implements tie.Namespace.
type Namespace struct {
	params *xsync.MapOf[string, *Param]
}

// NewNamespace creates an empty parameter table
func NewNamespace() *Namespace {
	return &Namespace{params: xsync.NewMapOf[string, *Param]()}
}

// Lookup returns the parameter registered under name
func (n *Namespace) Lookup(name string) (*Param, bool) {
	return n.params.Load(name)
}

// Names returns all parameter names, sorted
func (n *Namespace) Names() []string {
	names := make([]string, 0, n.params.Size())
	n.params.Range(func(name string, _ *Param) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Special hashes (tie.Namespace)
// --------------------------------------------------------------------------

// CreateSpecialHash registers a hash backed by s. A plain scalar of the same
// name is replaced, read-only scalars and other special hashes are kept and
// an error is returned.
func (n *Namespace) CreateSpecialHash(name string, s store.IStore) error {
	if !validName(name) {
		return fmt.Errorf("not an identifier: %s", name)
	}
	var err error
	n.params.Compute(name, func(old *Param, loaded bool) (*Param, bool) {
		if loaded && old.ReadOnly {
			err = fmt.Errorf("read-only variable: %s", name)
			return old, false
		}
		if loaded && old.Type == ParamSpecialHash {
			err = fmt.Errorf("%s is already a special hash", name)
			return old, false
		}
		return &Param{Name: name, Type: ParamSpecialHash, Hash: s}, false
	})
	return err
}

// RemoveSpecialHash deletes the special hash registered under name
func (n *Namespace) RemoveSpecialHash(name string) error {
	var err error
	n.params.Compute(name, func(old *Param, loaded bool) (*Param, bool) {
		if !loaded {
			err = fmt.Errorf("no such parameter: %s", name)
			return nil, true
		}
		if old.Type != ParamSpecialHash {
			err = fmt.Errorf("%s is not a special hash", name)
			return old, false
		}
		return nil, true
	})
	return err
}

// --------------------------------------------------------------------------
// Scalars
// --------------------------------------------------------------------------

// SetScalar assigns value to the scalar name, creating it if needed
func (n *Namespace) SetScalar(name, value string) error {
	return n.assign(name, value, false)
}

// SetReadOnly marks name read-only. If value is non-nil it is assigned first.
func (n *Namespace) SetReadOnly(name string, value *string) error {
	if value != nil {
		if err := n.assign(name, *value, true); err != nil {
			return err
		}
		return nil
	}
	var err error
	n.params.Compute(name, func(old *Param, loaded bool) (*Param, bool) {
		switch {
		case !loaded:
			return &Param{Name: name, Type: ParamScalar, ReadOnly: true}, false
		case old.Type == ParamSpecialHash:
			err = fmt.Errorf("%s: cannot make a tied hash read-only", name)
			return old, false
		default:
			c := *old
			c.ReadOnly = true
			return &c, false
		}
	})
	return err
}

// Unset removes the scalar name. Unsetting an unknown name is a no-op.
func (n *Namespace) Unset(name string) error {
	var err error
	n.params.Compute(name, func(old *Param, loaded bool) (*Param, bool) {
		switch {
		case !loaded:
			return nil, true
		case old.ReadOnly:
			err = fmt.Errorf("read-only variable: %s", name)
			return old, false
		case old.Type == ParamSpecialHash:
			err = fmt.Errorf("%s: tied hashes are removed with zuntie", name)
			return old, false
		default:
			return nil, true
		}
	})
	return err
}

func (n *Namespace) assign(name, value string, readOnly bool) error {
	if !validName(name) {
		return fmt.Errorf("not an identifier: %s", name)
	}
	var err error
	n.params.Compute(name, func(old *Param, loaded bool) (*Param, bool) {
		if loaded && old.ReadOnly {
			err = fmt.Errorf("read-only variable: %s", name)
			return old, false
		}
		if loaded && old.Type == ParamSpecialHash {
			err = fmt.Errorf("%s: cannot assign a scalar to a tied hash", name)
			return old, false
		}
		return &Param{Name: name, Type: ParamScalar, Value: value, ReadOnly: readOnly}, false
	})
	return err
}

// validName reports whether s is an identifier ([A-Za-z_][A-Za-z0-9_]*)
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
