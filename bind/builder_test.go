package bind

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestConstructorCallAndNew(t *testing.T) {
	L := newState(t)
	registerVec(t, L, DefaultOptions())

	mustRun(t, L, `
		local a = Vec(3, 4)
		local b = Vec.new(3, 4)
		assert(a:length() == b:length())
	`)
}

func TestConstructorOverloads(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(func() *vec { return &vec{} }).
		Constructor(newVec).
		ConstMethod("length", (*vec).Length)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		assert(Vec():length() == 0)
		assert(Vec(3, 4):length() == 25)
	`)

	err := L.DoString(`Vec(1)`)
	if err == nil {
		t.Fatal("one-argument construction should exhaust the overload set")
	}
	if !strings.Contains(err.Error(), "All 2 overloads of Vec returned an error:") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConstructorArgumentDiagnostic(t *testing.T) {
	L := newState(t)
	registerVec(t, L, DefaultOptions())

	err := L.DoString(`Vec("a", 2)`)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !strings.Contains(err.Error(), "Error decoding argument #2") {
		t.Errorf("error = %q, want the first ctor argument's slot", err.Error())
	}
}

func TestConstructorFailureLeavesHandleUncommitted(t *testing.T) {
	L := newState(t)

	torndown := 0
	r := NewRegistry(L)
	r.Global().
		Class("Fragile", DefaultOptions()).
		Factory(func(ok bool) (*vec, error) {
			if !ok {
				return nil, &scriptError{"construction refused"}
			}
			return &vec{}, nil
		}, func(any) { torndown++ })
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustFail(t, L, `Fragile(false)`, "construction refused")

	// The reserved userdata is garbage now; releasing it must skip
	// teardown because nothing was committed.
	mustRun(t, L, `ok = Fragile(true)`)
	h := handleAt(L, globalIndex(L, "ok"))
	if h == nil {
		t.Fatal("expected a handle behind the constructed userdata")
	}
	h.Release()
	h.Release()
	if torndown != 1 {
		t.Errorf("teardown ran %d times, want 1 (only the committed handle)", torndown)
	}
}

type scriptError struct{ msg string }

func (e *scriptError) Error() string { return e.msg }

// globalIndex pushes a global and returns its stack slot.
func globalIndex(L *lua.LState, name string) int {
	L.Push(L.GetGlobal(name))
	return L.GetTop()
}

func TestFactoryTeardownExactlyOnce(t *testing.T) {
	L := newState(t)

	freed := 0
	r := NewRegistry(L)
	r.Global().
		Class("Res", DefaultOptions()).
		Factory(func() *vec { return &vec{} }, func(any) { freed++ }).
		ConstMethod("length", (*vec).Length)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `r = Res()`)
	h := handleAt(L, globalIndex(L, "r"))
	if h == nil {
		t.Fatal("no handle")
	}

	// Both collection entry points race to the same release.
	gcOnUserData(L, "r")
	h.Release()
	if freed != 1 {
		t.Errorf("dealloc ran %d times, want 1", freed)
	}
}

// gcOnUserData drives the __gc metamethod by hand, the way collection
// would.
func gcOnUserData(L *lua.LState, global string) {
	L.Push(L.NewFunction(gcMetamethod))
	L.Push(L.GetGlobal(global))
	L.Call(1, 0)
}

func TestContainerSharedOwnership(t *testing.T) {
	L := newState(t)

	destroyed := 0
	r := NewRegistry(L)
	c := r.Global().
		Class("Shared", DefaultOptions()).
		Container(func() *vec { return &vec{X: 1} }, func(any) { destroyed++ }).
		ConstMethod("length", (*vec).Length)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `s = Shared()`)
	h := handleAt(L, globalIndex(L, "s"))
	if h == nil || h.Owner() != OwnShared {
		t.Fatalf("handle = %+v, want shared ownership", h)
	}

	// A second script reference through the same container.
	L.SetGlobal("s2", c.WrapShared(h.shared))
	h2 := handleAt(L, globalIndex(L, "s2"))

	h.Release()
	if destroyed != 0 {
		t.Fatal("destroyed while s2 still holds a reference")
	}
	h2.Release()
	if destroyed != 1 {
		t.Errorf("destroyed %d times, want 1", destroyed)
	}
}

func TestExternalNilReleaseSuppressed(t *testing.T) {
	L := newState(t)

	host := &vec{X: 5}
	r := NewRegistry(L)
	r.Global().
		Class("View", DefaultOptions()).
		External(func() *vec { return host }, nil).
		Field("X")
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `v = View(); v.x = 9`)
	h := handleAt(L, globalIndex(L, "v"))
	h.Release()
	if host.X != 9 {
		t.Errorf("host value = %v, want the script's write", host.X)
	}
}

func TestToString(t *testing.T) {
	L := newState(t)
	c := registerVec(t, L, DefaultOptions())

	mustRun(t, L, `
		local s = tostring(Vec(1, 2))
		assert(string.sub(s, 1, 7) == "Vec: 0x", s)
	`)

	L.SetGlobal("cv", c.WrapConst(&vec{}))
	mustRun(t, L, `
		local s = tostring(cv)
		assert(string.sub(s, 1, 13) == "const Vec: 0x", s)
	`)
}

func TestNamespaceFunctions(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Namespace("math2", DefaultOptions()).
		Function("square", func(x float64) float64 { return x * x }).
		Function("square", func(s string) string { return s + s }).
		Constant("tau", 6.28318)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		assert(math2.square(3) == 9)
		assert(math2.square("ab") == "abab")
		assert(math2.tau > 6 and math2.tau < 7)
	`)
	mustFail(t, L, `math2.unknown = 1`, "no writable member 'unknown'")
}

func TestNamespaceProperties(t *testing.T) {
	L := newState(t)

	level := 3
	r := NewRegistry(L)
	r.Global().
		Namespace("cfg", DefaultOptions()).
		Property("level",
			func() int { return level },
			func(v int) { level = v }).
		Property("version", func() string { return "1.2" }, nil)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		assert(cfg.level == 3)
		cfg.level = 7
		assert(cfg.level == 7)
		assert(cfg.version == "1.2")
	`)
	if level != 7 {
		t.Errorf("setter did not reach the host: %d", level)
	}
	mustFail(t, L, `cfg.version = "2.0"`, "'version' is read-only")
}

func TestStaticMembers(t *testing.T) {
	L := newState(t)

	origin := &vec{}
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		ConstMethod("length", (*vec).Length).
		StaticFunction("dot", func(ax, ay, bx, by float64) float64 { return ax*bx + ay*by }).
		StaticProperty("origin", func() float64 { return origin.X }, func(x float64) { origin.X = x })
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		assert(Vec.dot(1, 2, 3, 4) == 11)
		assert(Vec.origin == 0)
		Vec.origin = 5
		assert(Vec.origin == 5)
	`)
	if origin.X != 5 {
		t.Errorf("static setter did not reach the host: %v", origin.X)
	}
	mustFail(t, L, `Vec.unknown = 1`, "no writable member 'unknown'")
}

func TestStaticInheritance(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Base", DefaultOptions()).
		Constructor(newVec).
		StaticFunction("kind", func() string { return "base" })
	r.Global().
		DeriveClass("Derived", "Base", DefaultOptions()).
		Constructor(newVec)
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `assert(Derived.kind() == "base")`)
}

func TestMethodOverloads(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		Method("set", func(v *vec, x float64) { v.X = x }).
		Method("set", func(v *vec, x, y float64) { v.X, v.Y = x, y }).
		Field("X").
		Field("Y")
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		local v = Vec(0, 0)
		v:set(1)
		assert(v.x == 1 and v.y == 0)
		v:set(2, 3)
		assert(v.x == 2 and v.y == 3)
	`)
}

func TestRawMethodPassthrough(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		RawMethod("argc", func(L *lua.LState) int {
			L.Push(lua.LNumber(L.GetTop() - 1))
			return 1
		})
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		local v = Vec(0, 0)
		assert(v:argc(1, 2, 3) == 3)
	`)
}

func TestWrapHostObject(t *testing.T) {
	L := newState(t)
	c := registerVec(t, L, DefaultOptions())

	host := &vec{X: 2, Y: 3}
	L.SetGlobal("hv", c.Wrap(host))

	mustRun(t, L, `
		assert(hv:length() == 13)
		hv:scale(2)
	`)
	if host.X != 4 || host.Y != 6 {
		t.Errorf("host object = %+v, script mutation lost", host)
	}
}

func TestMethodReturnsBoundInstance(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		ConstMethod("length", (*vec).Length).
		Method("scale", (*vec).Scale).
		Method("clone", func(v *vec) *vec { return &vec{X: v.X, Y: v.Y} }).
		Method("self", func(v *vec) *vec { return v }).
		Field("X")
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `
		local v = Vec(3, 4)
		local w = v:clone()
		assert(type(w) == "userdata", "results of bound types stay bound")
		assert(w:length() == 25, "methods dispatch on the result")
		w:scale(2)
		assert(w.x == 6 and v.x == 3, "clone is a distinct instance")

		local s = v:self()
		s:scale(10)
		assert(v.x == 30, "identity preserved through the result path")
	`)
}

func TestNamespaceFunctionReturnsBoundInstance(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		ConstMethod("length", (*vec).Length)
	r.Global().
		Namespace("geo", DefaultOptions()).
		Function("unit", func() *vec { return &vec{X: 1} })
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustRun(t, L, `assert(geo.unit():length() == 1)`)
}

func TestRegistrationErrors(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().Class("Bad", DefaultOptions()).Constructor(42)
	if r.Err() == nil {
		t.Error("non-function constructor should record a registration error")
	}

	r2 := NewRegistry(L)
	r2.Global().DeriveClass("Orphan", "NoSuchParent", DefaultOptions())
	if r2.Err() == nil {
		t.Error("unknown parent should record a registration error")
	}
}

func TestNativeFailurePropagates(t *testing.T) {
	L := newState(t)
	r := NewRegistry(L)
	r.Global().
		Class("Vec", DefaultOptions()).
		Constructor(newVec).
		Method("fail", func(v *vec) error { return &scriptError{"native says no"} }).
		Method("explode", func(v *vec) { panic("kaboom") })
	if r.Err() != nil {
		t.Fatalf("registration: %v", r.Err())
	}

	mustFail(t, L, `Vec(1,1):fail()`, "native says no")
	mustFail(t, L, `Vec(1,1):explode()`, "kaboom")
}
