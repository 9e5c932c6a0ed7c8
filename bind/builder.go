package bind

import (
	"reflect"
	"runtime"
	"sort"
	"weak"

	lua "github.com/yuin/gopher-lua"

	"go.uber.org/zap"

	"github.com/wippyai/lua-bridge/errors"
	"github.com/wippyai/lua-bridge/stack"
)

// Registry is the per-state root. It owns the strong references to every
// Metadata level; the parent links inside the chain stay weak.
type Registry struct {
	L       *lua.LState
	classes map[string]*ClassBuilder
	types   map[reflect.Type]*ClassBuilder
	keep    []*Metadata
	global  *Namespace
	err     error
}

// NewRegistry creates a registry bound to one Lua state.
func NewRegistry(L *lua.LState) *Registry {
	return &Registry{L: L, classes: make(map[string]*ClassBuilder)}
}

// Global returns the global scope. Functions and classes registered here
// land directly in _G; the global table itself keeps native semantics, so
// plain global reads and writes are untouched.
func (r *Registry) Global() *Namespace {
	if r.global == nil {
		r.global = &Namespace{r: r, name: "_G", tbl: r.L.G.Global, fns: make(map[string][]*adapter)}
	}
	return r.global
}

// Class looks up a registered class builder by name.
func (r *Registry) Class(name string) *ClassBuilder { return r.classes[name] }

// ClassNames returns the registered class names.
func (r *Registry) ClassNames() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	return names
}

// Err returns the first registration error, if any.
func (r *Registry) Err() error { return r.err }

var sharedType = reflect.TypeOf((*Shared)(nil))

// bindType records the native type a class's instances wrap, so results
// of that type push as bound instances. First registration wins.
func (r *Registry) bindType(rt reflect.Type, c *ClassBuilder) {
	if rt == nil || rt == errorType || rt == sharedType {
		return
	}
	if r.types == nil {
		r.types = make(map[reflect.Type]*ClassBuilder)
	}
	if _, ok := r.types[rt]; !ok {
		r.types[rt] = c
	}
}

// push encodes one result cell. Values of registered class types become
// live bound instances instead of detached tables; everything else goes
// through the plain marshaller.
func (r *Registry) push(L *lua.LState, v any) error {
	if v != nil {
		rv := reflect.ValueOf(v)
		if c, ok := r.types[rv.Type()]; ok {
			if rv.Kind() != reflect.Pointer || !rv.IsNil() {
				L.Push(c.Wrap(v))
				return nil
			}
		}
	}
	return stack.Push(L, v)
}

func (r *Registry) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	Logger().Error("registration failed", zap.Error(err))
}

// Namespace is a registration scope for functions, properties, constants
// and classes.
type Namespace struct {
	r      *Registry
	parent *Namespace
	name   string
	tbl    *lua.LTable
	md     *Metadata // nil for the global scope
	fns    map[string][]*adapter
}

func (n *Namespace) optsFn() func() Options {
	if n.md == nil {
		return DefaultOptions
	}
	return n.md.Options
}

// Namespace creates (and enters) a nested namespace table guarded by the
// resolution engine: unknown writes raise, properties dispatch through
// accessors.
func (n *Namespace) Namespace(name string, opts Options) *Namespace {
	L := n.r.L
	tbl := L.NewTable()
	md := newMetadata(L, name, kindNamespace, opts)
	md.members = tbl
	md.setters = make(map[string]*lua.LFunction)
	md.mt.RawSetString("__index", L.NewFunction(indexClosure(md)))
	md.mt.RawSetString("__newindex", L.NewFunction(newindexClosure(md)))
	L.SetMetatable(tbl, md.mt)
	n.tbl.RawSetString(name, tbl)
	n.r.keep = append(n.r.keep, md)
	Logger().Debug("registered namespace", zap.String("name", name))
	return &Namespace{r: n.r, parent: n, name: name, tbl: tbl, md: md, fns: make(map[string][]*adapter)}
}

// EndNamespace returns to the enclosing scope.
func (n *Namespace) EndNamespace() *Namespace { return n.parent }

// Function registers a Go function. Registering the same name again adds
// an overload candidate.
func (n *Namespace) Function(name string, fn any) *Namespace {
	a, err := wrapFunc(name, fn, 1, false, true, n.optsFn(), n.r.push)
	if err != nil {
		n.r.fail(errors.Registration(n.name, name, err))
		return n
	}
	n.addFn(name, a)
	return n
}

// RawFunction registers a host callback without adaptation.
func (n *Namespace) RawFunction(name string, fn lua.LGFunction) *Namespace {
	n.addFn(name, wrapRaw(name, fn))
	return n
}

func (n *Namespace) addFn(name string, a *adapter) {
	n.fns[name] = append(n.fns[name], a)
	if len(n.fns[name]) == 1 {
		n.tbl.RawSetString(name, n.r.L.NewFunction(
			overloadDispatcher(name, func() []*adapter { return n.fns[name] }, 1)))
	}
	Logger().Debug("registered function",
		zap.String("scope", n.name), zap.String("name", name), zap.Int("arity", a.arity))
}

// Constant registers a fixed value.
func (n *Namespace) Constant(name string, v any) *Namespace {
	lv, err := stack.Encode(n.r.L, v)
	if err != nil {
		n.r.fail(errors.Registration(n.name, name, err))
		return n
	}
	n.tbl.RawSetString(name, lv)
	return n
}

// Property registers an accessor pair. A nil setter makes the property
// read-only. Not supported on the global scope.
func (n *Namespace) Property(name string, get, set any) *Namespace {
	if n.md == nil {
		n.r.fail(errors.Registration(n.name, name,
			errors.InvalidInput(errors.PhaseRegister, "properties require a namespace scope")))
		return n
	}
	L := n.r.L
	ga, err := wrapFunc(name, get, 1, false, true, n.optsFn(), n.r.push)
	if err != nil {
		n.r.fail(errors.Registration(n.name, name, err))
		return n
	}
	n.md.getters[name] = L.NewFunction(ga.fn)
	if set == nil {
		n.md.setters[name] = readOnlyError(L, name)
		return n
	}
	sa, err := wrapFunc(name, set, 1, false, true, n.optsFn(), n.r.push)
	if err != nil {
		n.r.fail(errors.Registration(n.name, name, err))
		return n
	}
	n.md.setters[name] = L.NewFunction(sa.fn)
	return n
}

// Class registers a new class in this scope.
func (n *Namespace) Class(name string, opts Options) *ClassBuilder {
	return n.classWith(name, nil, opts)
}

// DeriveClass registers a class whose resolution chain continues into a
// previously registered parent.
func (n *Namespace) DeriveClass(name, parentName string, opts Options) *ClassBuilder {
	parent := n.r.classes[parentName]
	if parent == nil {
		n.r.fail(errors.Registration(n.name, name,
			errors.NotFound(errors.PhaseRegister, "parent class", parentName)))
	}
	return n.classWith(name, parent, opts)
}

func (n *Namespace) classWith(name string, parent *ClassBuilder, opts Options) *ClassBuilder {
	L := n.r.L
	c := &ClassBuilder{
		r:       n.r,
		ns:      n,
		name:    name,
		parent:  parent,
		methods: make(map[string][]*adapter),
		statics: make(map[string][]*adapter),
	}

	c.inst = newMetadata(L, name, kindInstance, opts)
	c.constM = newMetadata(L, "const "+name, kindConstView, opts)
	c.static = newMetadata(L, name, kindStatic, opts)
	c.inst.setters = make(map[string]*lua.LFunction)
	c.constM.setters = make(map[string]*lua.LFunction)
	c.static.setters = make(map[string]*lua.LFunction)

	c.classTable = L.NewTable()
	c.static.members = c.classTable

	if parent != nil {
		c.inst.parent = weak.Make(parent.inst)
		c.constM.parent = weak.Make(parent.constM)
		c.static.parent = weak.Make(parent.static)
	}

	for _, md := range []*Metadata{c.inst, c.constM} {
		md.mt.RawSetString("__index", L.NewFunction(indexClosure(md)))
		md.mt.RawSetString("__newindex", L.NewFunction(newindexClosure(md)))
		md.mt.RawSetString("__gc", L.NewFunction(gcMetamethod))
		md.mt.RawSetString("__tostring", L.NewFunction(tostringClosure(md.name)))
		md.mt.RawSetString(keyClass, c.classTable)
	}
	c.inst.mt.RawSetString(keyConst, c.constM.mt)

	c.static.mt.RawSetString("__index", L.NewFunction(indexClosure(c.static)))
	c.static.mt.RawSetString("__newindex", L.NewFunction(newindexClosure(c.static)))
	c.static.mt.RawSetString(keyConst, c.constM.mt)
	L.SetMetatable(c.classTable, c.static.mt)

	if opts.Has(Extensible) {
		c.inst.newindexFallback = L.NewFunction(defaultNewindexFallback(c.inst))
	}

	n.tbl.RawSetString(name, c.classTable)
	n.r.classes[name] = c
	n.r.keep = append(n.r.keep, c.inst, c.constM, c.static)
	Logger().Debug("registered class",
		zap.String("scope", n.name), zap.String("name", name),
		zap.Bool("derived", parent != nil))
	return c
}

// ClassBuilder registers the members of one class across its three
// surfaces: instance metatable, const view metatable and class table.
type ClassBuilder struct {
	r          *Registry
	ns         *Namespace
	name       string
	parent     *ClassBuilder
	inst       *Metadata
	constM     *Metadata
	static     *Metadata
	classTable *lua.LTable
	ctors      []*adapter
	methods    map[string][]*adapter
	statics    map[string][]*adapter
}

// EndClass returns to the enclosing namespace.
func (c *ClassBuilder) EndClass() *Namespace { return c.ns }

// Metadata returns the instance-level resolution record.
func (c *ClassBuilder) Metadata() *Metadata { return c.inst }

// ConstMetadata returns the const view's resolution record.
func (c *ClassBuilder) ConstMetadata() *Metadata { return c.constM }

// StaticMetadata returns the class table's resolution record.
func (c *ClassBuilder) StaticMetadata() *Metadata { return c.static }

// Options returns the instance surface's live option flags.
func (c *ClassBuilder) Options() Options { return c.inst.Options() }

// SetOptions replaces the option flags on all three surfaces.
func (c *ClassBuilder) SetOptions(opts Options) *ClassBuilder {
	SetClassOptions(c.inst.mt, opts)
	SetClassOptions(c.constM.mt, opts)
	SetClassOptions(c.static.mt, opts)
	return c
}

func (c *ClassBuilder) instOpts() Options { return c.inst.Options() }

// Constructor registers a placement constructor: the handle is reserved,
// the factory runs over the call arguments, and success commits the
// value-owned payload. Multiple constructors form an overload set.
func (c *ClassBuilder) Constructor(fn any) *ClassBuilder {
	return c.addCtor(fn, ctorPlacement, nil)
}

// Factory registers a heap constructor with a paired destructor; the
// destructor runs exactly once at collection.
func (c *ClassBuilder) Factory(alloc any, dealloc func(any)) *ClassBuilder {
	return c.addCtor(alloc, ctorFactory, dealloc)
}

// Container registers shared-ownership construction: the result is
// adopted into a refcounted container (or is one already), destroyed when
// the last reference drops.
func (c *ClassBuilder) Container(alloc any, destroy func(any)) *ClassBuilder {
	return c.addCtor(alloc, ctorContainer, destroy)
}

// External registers a forwarding constructor for host-owned values. A
// nil release callback suppresses teardown.
func (c *ClassBuilder) External(factory any, release func(any)) *ClassBuilder {
	return c.addCtor(factory, ctorExternal, release)
}

func (c *ClassBuilder) addCtor(fn any, mode ctorMode, release func(any)) *ClassBuilder {
	a, err := wrapConstructor(c.inst, c.inst.mt, fn, mode, release, c.instOpts)
	if err != nil {
		c.r.fail(errors.Registration(c.ns.name, c.name, err))
		return c
	}
	if ft := reflect.TypeOf(fn); ft.Kind() == reflect.Func && ft.NumOut() > 0 {
		c.r.bindType(ft.Out(0), c)
	}
	c.ctors = append(c.ctors, a)
	if len(c.ctors) == 1 {
		disp := overloadDispatcher(c.name, func() []*adapter { return c.ctors }, 2)
		c.static.mt.RawSetString("__call", c.r.L.NewFunction(disp))
		c.classTable.RawSetString("new", c.r.L.NewFunction(func(L *lua.LState) int {
			// align `Class.new(...)` with the __call layout: slot 1 is
			// reserved for the class table
			L.Insert(lua.LNil, 1)
			return disp(L)
		}))
	}
	return c
}

// Method registers an instance method. It is absent from const views and
// refuses dispatch on const handles.
func (c *ClassBuilder) Method(name string, fn any) *ClassBuilder {
	a, err := wrapFunc(name, fn, 2, true, false, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.bindReceiver(fn)
	c.addMethod(name, a, false)
	return c
}

// ConstMethod registers a method available on both mutable and const
// views.
func (c *ClassBuilder) ConstMethod(name string, fn any) *ClassBuilder {
	a, err := wrapFunc(name, fn, 2, true, true, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.bindReceiver(fn)
	c.addMethod(name, a, true)
	return c
}

func (c *ClassBuilder) bindReceiver(fn any) {
	if ft := reflect.TypeOf(fn); ft != nil && ft.Kind() == reflect.Func && ft.NumIn() > 0 {
		c.r.bindType(ft.In(0), c)
	}
}

// RawMethod registers a host callback as a method, bypassing adaptation.
func (c *ClassBuilder) RawMethod(name string, fn lua.LGFunction) *ClassBuilder {
	c.addMethod(name, wrapRaw(name, fn), true)
	return c
}

func (c *ClassBuilder) addMethod(name string, a *adapter, alsoConst bool) {
	c.methods[name] = append(c.methods[name], a)
	if len(c.methods[name]) == 1 {
		f := c.r.L.NewFunction(overloadDispatcher(name, func() []*adapter { return c.methods[name] }, 2))
		c.inst.members.RawSetString(name, f)
		if alsoConst {
			c.constM.members.RawSetString(name, f)
		}
	} else if alsoConst && c.constM.members.RawGetString(name) == lua.LNil {
		c.constM.members.RawSetString(name, c.inst.members.RawGetString(name))
	}
	Logger().Debug("registered method",
		zap.String("class", c.name), zap.String("name", name),
		zap.Int("arity", a.arity), zap.Bool("const", alsoConst))
}

// StaticFunction registers a function on the class table.
func (c *ClassBuilder) StaticFunction(name string, fn any) *ClassBuilder {
	a, err := wrapFunc(name, fn, 1, false, true, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.statics[name] = append(c.statics[name], a)
	if len(c.statics[name]) == 1 {
		c.classTable.RawSetString(name, c.r.L.NewFunction(
			overloadDispatcher(name, func() []*adapter { return c.statics[name] }, 1)))
	}
	return c
}

// StaticProperty registers an accessor pair on the class table. A nil
// setter makes it read-only.
func (c *ClassBuilder) StaticProperty(name string, get, set any) *ClassBuilder {
	L := c.r.L
	ga, err := wrapFunc(name, get, 1, false, true, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.static.getters[name] = L.NewFunction(ga.fn)
	if set == nil {
		c.static.setters[name] = readOnlyError(L, name)
		return c
	}
	sa, err := wrapFunc(name, set, 1, false, true, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.static.setters[name] = L.NewFunction(sa.fn)
	return c
}

// Property registers an instance accessor pair. The getter serves both
// views; const views always reject the write.
func (c *ClassBuilder) Property(name string, get, set any) *ClassBuilder {
	L := c.r.L
	ga, err := wrapFunc(name, get, 2, true, true, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	gf := L.NewFunction(ga.fn)
	c.inst.getters[name] = gf
	c.constM.getters[name] = gf
	c.constM.setters[name] = readOnlyError(L, name)
	if set == nil {
		c.inst.setters[name] = readOnlyError(L, name)
		return c
	}
	sa, err := wrapFunc(name, set, 2, true, false, c.instOpts, c.r.push)
	if err != nil {
		c.r.fail(errors.Registration(c.name, name, err))
		return c
	}
	c.inst.setters[name] = L.NewFunction(sa.fn)
	return c
}

// ReadOnly registers a getter-only property.
func (c *ClassBuilder) ReadOnly(name string, get any) *ClassBuilder {
	return c.Property(name, get, nil)
}

// Field exposes an exported struct field (by its Go name) as a property
// resolved through reflection on the receiver's dynamic type. The member
// name is the field name with its first letter lowered.
func (c *ClassBuilder) Field(name string) *ClassBuilder {
	L := c.r.L
	key := memberKey(name)

	get := L.NewFunction(func(L *lua.LState) int {
		f := fieldOf(L, name)
		if err := c.r.push(L, f.Interface()); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 1
	})
	set := L.NewFunction(func(L *lua.LState) int {
		f := fieldOf(L, name)
		if !f.CanSet() {
			L.RaiseError("%s", errors.ReadOnly(key).Detail)
			return 0
		}
		v, err := stack.DecodeValue(L, 2, f.Type())
		if err != nil {
			L.RaiseError("%s", errors.DecodeArg(2, err).Detail)
			return 0
		}
		f.Set(v)
		return 0
	})

	c.inst.getters[key] = get
	c.constM.getters[key] = get
	c.inst.setters[key] = set
	c.constM.setters[key] = readOnlyError(L, key)
	return c
}

// fieldOf resolves an exported field on the receiver at slot 1, raising
// when the receiver or field cannot serve.
func fieldOf(L *lua.LState, name string) reflect.Value {
	h := handleAt(L, 1)
	if h == nil || h.Native() == nil {
		L.RaiseError("field '%s' read without instance", name)
		return reflect.Value{}
	}
	rv := reflect.Indirect(reflect.ValueOf(h.Native()))
	if rv.Kind() != reflect.Struct {
		L.RaiseError("%s", errors.NoMember(memberKey(name)).Detail)
		return reflect.Value{}
	}
	f := rv.FieldByName(name)
	if !f.IsValid() {
		L.RaiseError("%s", errors.NoMember(memberKey(name)).Detail)
		return reflect.Value{}
	}
	return f
}

// Members returns the member names resolvable on instances, sorted.
func (c *ClassBuilder) Members() []string {
	var names []string
	c.inst.members.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			names = append(names, string(s))
		}
	})
	sort.Strings(names)
	return names
}

// Properties returns the property names resolvable on instances, sorted.
func (c *ClassBuilder) Properties() []string {
	names := make([]string, 0, len(c.inst.getters))
	for name := range c.inst.getters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexFallback installs the read fallback hook on both instance views.
func (c *ClassBuilder) IndexFallback(fn lua.LGFunction) *ClassBuilder {
	f := c.r.L.NewFunction(fn)
	c.inst.indexFallback = f
	c.constM.indexFallback = f
	return c
}

// NewIndexFallback installs the write fallback hook on the mutable view.
func (c *ClassBuilder) NewIndexFallback(fn lua.LGFunction) *ClassBuilder {
	c.inst.newindexFallback = c.r.L.NewFunction(fn)
	return c
}

// Wrap pushes a host-owned value as an instance without teardown.
func (c *ClassBuilder) Wrap(v any) *lua.LUserData {
	return wrapObject(c.r.L, c.inst, c.inst.mt, v, OwnExternal, nil, false)
}

// WrapOwned pushes a value whose release callback runs at collection.
func (c *ClassBuilder) WrapOwned(v any, release func(any)) *lua.LUserData {
	return wrapObject(c.r.L, c.inst, c.inst.mt, v, OwnExternal, release, false)
}

// WrapConst pushes a host-owned value as a const view.
func (c *ClassBuilder) WrapConst(v any) *lua.LUserData {
	return wrapObject(c.r.L, c.constM, c.constM.mt, v, OwnExternal, nil, true)
}

// WrapShared pushes a retained reference to a shared container.
func (c *ClassBuilder) WrapShared(s *Shared) *lua.LUserData {
	s.Retain()
	h := newHandle(c.inst, OwnShared, nil)
	h.commitShared(s)
	ud := c.r.L.NewUserData()
	ud.Value = h
	c.r.L.SetMetatable(ud, c.inst.mt)
	runtime.SetFinalizer(ud, finalizeHandle)
	return ud
}

func memberKey(fieldName string) string {
	if fieldName == "" {
		return fieldName
	}
	if b := fieldName[0]; b >= 'A' && b <= 'Z' {
		return string(b+'a'-'A') + fieldName[1:]
	}
	return fieldName
}
