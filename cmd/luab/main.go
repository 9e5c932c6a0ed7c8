package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/lua-bridge/bind"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to Lua script")
		expr        = flag.String("e", "", "Expression to evaluate and print")
		list        = flag.Bool("list", false, "List bound classes and exit")
		interactive = flag.Bool("i", false, "Interactive inspector with TUI")
		verbose     = flag.Bool("v", false, "Verbose registration and dispatch logging")
	)
	flag.Parse()
	if *scriptFile == "" && flag.NArg() > 0 {
		*scriptFile = flag.Arg(0)
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		bind.SetLogger(l)
	}

	if *scriptFile == "" && *expr == "" && !*list && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: luab -script <file.lua> [-v]")
		fmt.Fprintln(os.Stderr, "       luab -e <expression>")
		fmt.Fprintln(os.Stderr, "       luab -list")
		fmt.Fprintln(os.Stderr, "       luab -i  (interactive inspector)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*scriptFile, *expr, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(scriptFile, expr string, listOnly bool) error {
	L := lua.NewState()
	defer L.Close()

	r, err := bindDemo(L)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	if listOnly {
		names := r.ClassNames()
		sort.Strings(names)
		fmt.Printf("Bound classes:\n")
		for _, name := range names {
			c := r.Class(name)
			fmt.Printf("  %s\n", name)
			for _, m := range c.Members() {
				fmt.Printf("    :%s()\n", m)
			}
			for _, p := range c.Properties() {
				fmt.Printf("    .%s\n", p)
			}
		}
		return nil
	}

	if expr != "" {
		return evalAndPrint(L, expr)
	}

	if err := L.DoFile(scriptFile); err != nil {
		return fmt.Errorf("run %s: %w", scriptFile, err)
	}
	return nil
}

func evalAndPrint(L *lua.LState, expr string) error {
	top := L.GetTop()
	if err := L.DoString("return " + expr); err != nil {
		// Not an expression; run it as a statement.
		if err2 := L.DoString(expr); err2 != nil {
			return err
		}
		return nil
	}
	var parts []string
	for i := top + 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.Get(i).String())
	}
	L.SetTop(top)
	if len(parts) > 0 {
		fmt.Println(strings.Join(parts, "\t"))
	}
	return nil
}

// vec is the demo vector type bound into every state the tool creates.
type vec struct {
	X, Y float64
}

func (v *vec) Length() float64 {
	return v.X*v.X + v.Y*v.Y
}

func (v *vec) Scale(f float64) {
	v.X *= f
	v.Y *= f
}

// stopwatch demonstrates factory ownership with teardown.
type stopwatch struct {
	start time.Time
}

func (s *stopwatch) Elapsed() float64 {
	return time.Since(s.start).Seconds()
}

// bindDemo registers the sample surface the runner and the inspector
// expose to scripts.
func bindDemo(L *lua.LState) (*bind.Registry, error) {
	r := bind.NewRegistry(L)

	r.Global().
		Class("Vec", bind.DefaultOptions()|bind.Extensible).
		Constructor(func() *vec { return &vec{} }).
		Constructor(func(x, y float64) *vec { return &vec{X: x, Y: y} }).
		ConstMethod("length", (*vec).Length).
		Method("scale", (*vec).Scale).
		Field("X").
		Field("Y")

	r.Global().
		Class("Stopwatch", bind.DefaultOptions()).
		Factory(func() *stopwatch { return &stopwatch{start: time.Now()} }, func(any) {}).
		ConstMethod("elapsed", (*stopwatch).Elapsed)

	r.Global().
		Namespace("bridge", bind.DefaultOptions()).
		Constant("version", "1.0").
		Function("clock", func() float64 { return float64(time.Now().UnixNano()) / 1e9 }).
		Function("concat", func(parts ...string) string { return strings.Join(parts, "") })

	return r, r.Err()
}
