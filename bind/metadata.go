package bind

import (
	"strings"
	"weak"

	lua "github.com/yuin/gopher-lua"
)

// metaKind distinguishes the resolution surfaces a Metadata can drive.
type metaKind uint8

const (
	kindNamespace metaKind = iota
	kindStatic
	kindInstance
	kindConstView
)

// Metadata is the resolution record behind one metatable level. The
// __index/__newindex closures close over it; the parent link is weak, the
// Registry holds the strong references for the state's lifetime.
type Metadata struct {
	name    string
	kind    metaKind
	parent  weak.Pointer[Metadata]
	mt      *lua.LTable // metatable carrying the option cell and closures
	members *lua.LTable // direct member storage consulted by the read path
	getters map[string]*lua.LFunction
	setters map[string]*lua.LFunction // nil map = no writable surface here

	indexFallback    *lua.LFunction
	newindexFallback *lua.LFunction
}

// parentMeta resolves the weak parent link; nil once the parent is gone
// or for a chain root.
func (m *Metadata) parentMeta() *Metadata {
	return m.parent.Value()
}

// pushSelf reports whether property accessors at this level receive the
// receiver (instances do, namespaces and statics do not).
func (m *Metadata) pushSelf() bool {
	return m.kind == kindInstance || m.kind == kindConstView
}

// Name returns the type or namespace name this metadata resolves for.
func (m *Metadata) Name() string { return m.name }

// Options returns the live option flags from the metatable cell.
func (m *Metadata) Options() Options { return GetClassOptions(m.mt) }

// SetIndexFallback installs the read fallback hook for this level.
func (m *Metadata) SetIndexFallback(fn *lua.LFunction) { m.indexFallback = fn }

// SetNewIndexFallback installs the write fallback hook for this level.
func (m *Metadata) SetNewIndexFallback(fn *lua.LFunction) { m.newindexFallback = fn }

// metamethodNames is the protocol-method name set: these names are never
// resolvable as members and route write fallbacks to the class table.
var metamethodNames = map[string]struct{}{
	"__add": {}, "__band": {}, "__bnot": {}, "__bor": {}, "__bxor": {},
	"__call": {}, "__close": {}, "__concat": {}, "__div": {}, "__eq": {},
	"__gc": {}, "__idiv": {}, "__index": {}, "__ipairs": {}, "__le": {},
	"__len": {}, "__lt": {}, "__metatable": {}, "__mod": {}, "__mode": {},
	"__mul": {}, "__name": {}, "__newindex": {}, "__pairs": {}, "__pow": {},
	"__shl": {}, "__shr": {}, "__sub": {}, "__tostring": {}, "__unm": {},
}

func isMetamethodName(name string) bool {
	_, ok := metamethodNames[name]
	return ok
}

// isReservedName reports whether a key can never resolve to a member:
// protocol metamethods and the internal __lb_ namespace.
func isReservedName(name string) bool {
	if strings.HasPrefix(name, "__lb_") {
		return true
	}
	return isMetamethodName(name)
}

// superName returns the backup key an overridden member is preserved
// under: "super_" + name, or "super" + name when name already starts
// with an underscore.
func superName(name string) string {
	if strings.HasPrefix(name, "_") {
		return "super" + name
	}
	return "super_" + name
}

// newMetadata allocates a metadata level together with its metatable and
// member table, and records the option cell.
func newMetadata(L *lua.LState, name string, kind metaKind, opts Options) *Metadata {
	md := &Metadata{
		name:    name,
		kind:    kind,
		mt:      L.NewTable(),
		members: L.NewTable(),
		getters: make(map[string]*lua.LFunction),
	}
	md.mt.RawSetString(keyTypeName, lua.LString(name))
	SetClassOptions(md.mt, opts)
	ud := L.NewUserData()
	ud.Value = md
	md.mt.RawSetString(keyMeta, ud)
	if !opts.Has(VisibleMetatables) {
		md.mt.RawSetString("__metatable", lua.LFalse)
	}
	return md
}

// metadataOf extracts the resolution record behind a metatable, if any.
func metadataOf(mt *lua.LTable) *Metadata {
	if mt == nil {
		return nil
	}
	if ud, ok := mt.RawGetString(keyMeta).(*lua.LUserData); ok {
		if md, ok := ud.Value.(*Metadata); ok {
			return md
		}
	}
	return nil
}
