package tie

import (
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/instrument"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/store/lstore"
	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("tie")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// State of a Binder
type State uint8

const (
	StateUntied State = iota // initial and terminal
	StateTied
)

func (s State) String() string {
	if s == StateTied {
		return "Tied"
	}
	return "Untied"
}

// Binding describes the active tie
type Binding struct {
	ID   uuid.UUID
	Name string
	Kind Kind
	Path string
}

// Namespace is the host side of a tie: it registers a special hash parameter
// whose accesses are delegated to a store.IStore.
type Namespace interface {
	// CreateSpecialHash binds name to s. It fails if name cannot be created.
	CreateSpecialHash(name string, s store.IStore) error
	// RemoveSpecialHash removes the parameter registered under name.
	RemoveSpecialHash(name string) error
}

// Binder owns at most one open store and the parameter it is bound to.
// It moves between StateUntied and StateTied and is not safe for concurrent use.
type Binder struct {
	ns        Namespace
	factories map[Kind]db.Factory
	counters  *vmetrics.Set
	timers    gometrics.Registry

	state    State
	binding  *Binding
	database db.KVDB
	store    store.IStore
}

// Option configures a Binder
type Option func(*Binder)

// WithFactory replaces the engine opened for kind
func WithFactory(kind Kind, factory db.Factory) Option {
	return func(b *Binder) {
		b.factories[kind.Canonical()] = factory
	}
}

// WithCounters sets the VictoriaMetrics set the bridge counters are kept in
func WithCounters(set *vmetrics.Set) Option {
	return func(b *Binder) {
		b.counters = set
	}
}

// WithTimers sets the registry the engine call timers are kept in
func WithTimers(registry gometrics.Registry) Option {
	return func(b *Binder) {
		b.timers = registry
	}
}

// NewBinder creates an untied Binder that registers its hashes in ns.
func NewBinder(ns Namespace, opts ...Option) *Binder {
	b := &Binder{
		ns:        ns,
		factories: defaultFactories(),
		counters:  vmetrics.NewSet(),
		timers:    gometrics.NewRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// --------------------------------------------------------------------------
// State transitions
// --------------------------------------------------------------------------

// Tie opens the store of the given kind at path and binds it to name.
// The store is opened before the parameter is created. If the parameter
// cannot be created the store is closed again, so a failed Tie never leaves
// an open handle behind.
func (b *Binder) Tie(name string, kind Kind, path string) error {
	if kind == "" {
		return newError(CodeConfig, nil, "backend kind is required")
	}
	if path == "" {
		return newError(CodeConfig, nil, "path is required")
	}
	canonical := kind.Canonical()
	factory, ok := b.factories[canonical]
	if !ok {
		return newError(CodeConfig, nil, "unknown backend %q", kind)
	}
	if b.state == StateTied {
		return newError(CodeAlreadyTied, nil, "%q is already tied to %s", b.binding.Name, b.binding.Path)
	}
	if name == "" {
		return newError(CodeParamCreate, nil, "parameter name must not be empty")
	}

	database, err := instrument.Factory(factory, b.timers)(path)
	if err != nil {
		log.Errorf("open %s (%s) failed: %v", path, canonical, err)
		e := newError(CodeStoreOpen, err, "error opening database file %s", path)
		e.Path = path
		return e
	}

	bridge := lstore.NewLocalStore(database, b.counters)
	if err := b.ns.CreateSpecialHash(name, bridge); err != nil {
		if cerr := database.Close(); cerr != nil {
			log.Errorf("close %s after failed tie: %v", path, cerr)
		}
		return newError(CodeParamCreate, err, "cannot create parameter %q", name)
	}

	b.binding = &Binding{
		ID:   uuid.New(),
		Name: name,
		Kind: canonical,
		Path: path,
	}
	b.database = database
	b.store = bridge
	b.state = StateTied

	log.Infof("tied %s to %s (%s, binding %s)", name, path, canonical, b.binding.ID)
	return nil
}

// Untie removes the parameter bound to name and closes the store.
// Once name is verified the binder always ends up untied. A close failure is
// logged and returned as StoreCloseError after the state has been reset.
func (b *Binder) Untie(name string) error {
	if b.state != StateTied {
		return newError(CodeNotTied, nil, "nothing is tied")
	}
	if name != b.binding.Name {
		return newError(CodeNameMismatch, nil, "%q is not tied, the active binding is %q", name, b.binding.Name)
	}

	binding, database := b.binding, b.database

	if err := b.ns.RemoveSpecialHash(name); err != nil {
		log.Warningf("remove parameter %s: %v", name, err)
	}

	b.binding = nil
	b.database = nil
	b.store = nil
	b.state = StateUntied

	if err := database.Close(); err != nil {
		log.Errorf("close %s failed: %v", binding.Path, err)
		e := newError(CodeStoreClose, err, "error closing database file %s", binding.Path)
		e.Path = binding.Path
		return e
	}

	log.Infof("untied %s from %s (binding %s)", name, binding.Path, binding.ID)
	return nil
}

// Close unties the active binding, if any.
func (b *Binder) Close() error {
	if b.state != StateTied {
		return nil
	}
	return b.Untie(b.binding.Name)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// State returns the current state
func (b *Binder) State() State {
	return b.state
}

// Binding returns a copy of the active binding, or nil if untied
func (b *Binder) Binding() *Binding {
	if b.binding == nil {
		return nil
	}
	c := *b.binding
	return &c
}

// Store returns the bridge of the active binding, or nil if untied
func (b *Binder) Store() store.IStore {
	return b.store
}

// Info returns the engine info of the active binding.
// Metadata carries the engine's own statistics and the call timers.
func (b *Binder) Info() (db.DatabaseInfo, error) {
	if b.state != StateTied {
		return db.DatabaseInfo{}, newError(CodeNotTied, nil, "nothing is tied")
	}
	return b.store.GetDBInfo()
}

// Counters returns the set holding the bridge operation counters
func (b *Binder) Counters() *vmetrics.Set {
	return b.counters
}

// Timers returns the registry holding the engine call timers
func (b *Binder) Timers() gometrics.Registry {
	return b.timers
}
