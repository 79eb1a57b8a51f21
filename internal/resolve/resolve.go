// Package resolve binds the numeric method ids of a task journal to members
// of the program model.
//
// Matching is exact: name, holder, return type and every parameter type
// must agree. There is no best-effort fallback, because binding a call site
// to the wrong overload would silently corrupt every report built on it.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"jitscope/internal/diag"
	"jitscope/internal/journal"
	"jitscope/internal/program"
	"jitscope/internal/telemetry"
)

// DefaultCacheSize bounds the number of cached resolutions.
const DefaultCacheSize = 1 << 14

var (
	ErrUnknownMethodID = errors.New("method id not declared in task")
	ErrUnknownKlassID  = errors.New("klass id not declared in task")
	ErrUnknownTypeID   = errors.New("type id not declared in task")
	ErrNoClass         = errors.New("class not in program model")
	ErrNoMatch         = errors.New("no member matches")
)

// Signature is what a method tag declares, with every id looked up in the
// owning task's dictionary.
type Signature struct {
	Holder string
	// Name is the decoded method name as written in the log, so a
	// constructor is "<init>".
	Name   string
	Return string
	Params []string
}

// IsConstructor reports whether the signature names an instance initialiser.
func (s Signature) IsConstructor() bool {
	return s.Name == journal.ConstructorName
}

func (s Signature) String() string {
	return s.Return + " " + s.Holder + "." + s.Name + "(" + strings.Join(s.Params, ", ") + ")"
}

// SignatureOf reads the signature of methodID from dict.
func SignatureOf(methodID string, dict *journal.Dictionary) (Signature, error) {
	method := dict.Method(methodID)
	if method == nil {
		return Signature{}, fmt.Errorf("%w: %s", ErrUnknownMethodID, methodID)
	}
	holderID := method.Attr(journal.AttrHolder)
	klass := dict.Klass(holderID)
	if klass == nil {
		return Signature{}, fmt.Errorf("%w: %s", ErrUnknownKlassID, holderID)
	}
	retID := method.Attr(journal.AttrReturn)
	ret, ok := dict.TypeOrKlassName(retID)
	if !ok {
		return Signature{}, fmt.Errorf("%w: %s", ErrUnknownTypeID, retID)
	}
	sig := Signature{
		Holder: program.TypeName(klass.Attr(journal.AttrName)),
		Name:   method.Attr(journal.AttrName),
		Return: program.TypeName(ret),
	}
	for _, id := range strings.Fields(method.Attr(journal.AttrArguments)) {
		name, ok := dict.TypeOrKlassName(id)
		if !ok {
			return Signature{}, fmt.Errorf("%w: %s", ErrUnknownTypeID, id)
		}
		sig.Params = append(sig.Params, program.TypeName(name))
	}
	return sig, nil
}

// Matches reports whether m is exactly the member sig describes.
func Matches(m *program.Member, sig Signature) bool {
	if m == nil {
		return false
	}
	wantName := sig.Name
	if sig.IsConstructor() {
		wantName = program.SimpleName(sig.Holder)
	}
	if m.Name != wantName {
		return false
	}
	if m.Holder != sig.Holder {
		return false
	}
	if m.Return != sig.Return {
		return false
	}
	if len(m.Params) != len(sig.Params) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != sig.Params[i] {
			return false
		}
	}
	return true
}

// FindMember returns the member of model matching sig, or ErrNoClass /
// ErrNoMatch.
func FindMember(model program.Model, sig Signature) (*program.Member, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoClass, sig.Holder)
	}
	mc := model.MetaClass(sig.Holder)
	if mc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoClass, sig.Holder)
	}
	for _, m := range mc.Members {
		if Matches(m, sig) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, sig)
}

type cacheKey struct {
	serial uint64
	id     string
}

func hashKey(k cacheKey) uint32 {
	h := xxh3.HashString(k.id) ^ (k.serial * 0x9e3779b97f4a7c15)
	return uint32(h ^ (h >> 32))
}

type outcome struct {
	member *program.Member
	err    error
}

// Options configures a Resolver.
type Options struct {
	Reporter  diag.Reporter
	Counters  *telemetry.Counters
	Logger    log.FieldLogger
	CacheSize uint32
}

// Resolver resolves method ids against one program model. It is safe for
// concurrent use.
type Resolver struct {
	model program.Model
	opts  Options
	cache *freelru.SyncedLRU[cacheKey, outcome]
}

// New returns a Resolver for model.
func New(model program.Model, opts Options) (*Resolver, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	cache, err := freelru.NewSynced[cacheKey, outcome](opts.CacheSize, hashKey)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	return &Resolver{model: model, opts: opts, cache: cache}, nil
}

// Model returns the program model the resolver reads.
func (r *Resolver) Model() program.Model {
	return r.model
}

// Resolve returns the member methodID denotes within dict, or nil.
func (r *Resolver) Resolve(methodID string, dict *journal.Dictionary) *program.Member {
	m, _ := r.Lookup(methodID, dict)
	return m
}

// Lookup is Resolve with the reason for a failed resolution.
func (r *Resolver) Lookup(methodID string, dict *journal.Dictionary) (*program.Member, error) {
	if dict == nil {
		return nil, fmt.Errorf("%w: %s (no dictionary)", ErrUnknownMethodID, methodID)
	}
	key := cacheKey{serial: dict.Serial(), id: methodID}
	if o, ok := r.cache.Get(key); ok {
		return o.member, o.err
	}

	m, err := r.lookup(methodID, dict)
	r.cache.Add(key, outcome{member: m, err: err})
	if err != nil {
		r.opts.Counters.Unresolved()
		diag.Info(r.opts.Reporter, codeFor(err), diag.Location{}, err.Error())
		r.opts.Logger.WithField("method_id", methodID).Debugf("unresolved: %v", err)
	}
	return m, err
}

func (r *Resolver) lookup(methodID string, dict *journal.Dictionary) (*program.Member, error) {
	sig, err := SignatureOf(methodID, dict)
	if err != nil {
		return nil, err
	}
	return FindMember(r.model, sig)
}

func codeFor(err error) diag.Code {
	switch {
	case errors.Is(err, ErrUnknownMethodID):
		return diag.SymUnknownMethodID
	case errors.Is(err, ErrUnknownKlassID), errors.Is(err, ErrUnknownTypeID):
		return diag.SymUnknownKlassID
	case errors.Is(err, ErrNoClass):
		return diag.SymNoClass
	default:
		return diag.SymNoMatchingMember
	}
}
