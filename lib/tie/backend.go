package tie

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/tKV/lib/db/engines/pebble"
	"github.com/ValentinKolb/tKV/lib/db/engines/snapshot"
)

// Kind selects the engine a store is opened with
type Kind string

const (
	KindBolt     = Kind(db.ImplBolt)
	KindPebble   = Kind(db.ImplPebble)
	KindSnapshot = Kind(db.ImplSnapshot)

	// KindGDBM is accepted for scripts written against the classic gdbm module
	// and opens the default single-file engine.
	KindGDBM Kind = "db/gdbm"

	DefaultKind = KindBolt
)

// defaultFactories maps every canonical kind to its engine
func defaultFactories() map[Kind]db.Factory {
	return map[Kind]db.Factory{
		KindBolt:     bolt.Factory(nil),
		KindPebble:   pebble.Factory(nil),
		KindSnapshot: snapshot.Factory(nil),
	}
}

// Canonical resolves aliases. Unknown kinds are returned unchanged.
func (k Kind) Canonical() Kind {
	if k == KindGDBM {
		return DefaultKind
	}
	return k
}

// ParseKind normalizes s and resolves aliases.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s))).Canonical()
	if _, ok := defaultFactories()[k]; !ok {
		return "", fmt.Errorf("unknown backend %q, must be one of %s", s, strings.Join(KindNames(), ", "))
	}
	return k, nil
}

// KindNames lists the accepted backend names including aliases, sorted
func KindNames() []string {
	names := []string{string(KindGDBM)}
	for k := range defaultFactories() {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
