package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	r3 "github.com/iarwain/r3"
)

const (
	appName     = "r3dbg"
	historyFile = ".r3dbg_history"
	prompt      = ">> "
)

var banner = fmt.Sprintf("r3 stack console %s\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit, help for commands.", r3.Version)

const helpText = `Chunk stack:
  push <v> ...          carve a chunk holding the given values
  drop                  drop the top chunk
Data stack:
  dpush <v> ...         push values on the evaluation stack
  depth                 show the stack pointer
  pop [mark]            pop everything above mark (default 0) into a block
Functions & frames:
  fn <name> <p> ...     define a function that returns its args as a block
  spec <name> <target> <p>=<v> ...   specialize target by name
  adapt <name> <target>              adapt target with a tracing prologue
  call <name> <v> ...   build a frame, fulfill, dispatch, retire
Throw/catch:
  throw <label> <v>     flag label as thrown, stash payload
  catch                 catch the pending throw into a destination
Inspection:
  roots                 walk every live root the collector would see
  stats                 allocator and stack counters
`

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

// parseValue reads one console token as a value: integers, true/false,
// double-quoted strings, none; anything else becomes a word.
func parseValue(tok string) r3.Value {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return r3.Int(n)
	}
	switch tok {
	case "true":
		return r3.Bool(true)
	case "false":
		return r3.Bool(false)
	case "none":
		return r3.None()
	}
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		if s, err := strconv.Unquote(tok); err == nil {
			return r3.Str(s)
		}
	}
	return r3.Word(tok)
}

// console holds the session state: the evaluator context plus the handles
// the commands juggle between lines (chunk handles are LIFO like the stack
// they came from).
type console struct {
	ctx    *r3.Context
	chunks [][]r3.Value
	funcs  map[string]*r3.Func
	thrown *r3.Value // label of the in-flight throw, if any
}

func newConsole() *console {
	c := &console{
		ctx:   r3.NewContext(r3.Options{}),
		funcs: map[string]*r3.Func{},
	}

	c.funcs["add"] = r3.NewFunc("add",
		[]r3.Param{{Name: "a"}, {Name: "b"}},
		func(ctx *r3.Context, f *r3.Frame) r3.Value {
			a, b := f.Arg(1), f.Arg(2)
			if a.Tag != r3.VTInt || b.Tag != r3.VTInt {
				return r3.None()
			}
			return r3.Int(a.Data.(int64) + b.Data.(int64))
		})

	// args echoes its arguments back as a block, built on the data stack
	// the way composite results are built for real.
	c.funcs["args"] = r3.NewFunc("args",
		[]r3.Param{{Name: "x"}, {Name: "y"}, {Name: "z"}},
		func(ctx *r3.Context, f *r3.Frame) r3.Value {
			mark := ctx.Depth()
			for i := 1; i <= f.NumArgs(); i++ {
				ctx.Push(*f.Arg(i))
			}
			return ctx.PopRangeInto(mark, nil)
		})

	return c
}

func (c *console) lookup(name string) (*r3.Func, error) {
	fn, ok := c.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no function %q (see help)", name)
	}
	return fn, nil
}

func (c *console) run(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Print(helpText)

	case "push":
		handle := c.ctx.PushChunk(len(args))
		for i, a := range args {
			handle[i] = parseValue(a)
		}
		c.chunks = append(c.chunks, handle)
		fmt.Println(green(fmt.Sprintf("chunk of %d pushed", len(args))))

	case "drop":
		if len(c.chunks) == 0 {
			return errors.New("no chunks pushed from the console")
		}
		handle := c.chunks[len(c.chunks)-1]
		c.chunks = c.chunks[:len(c.chunks)-1]
		c.ctx.DropChunk(handle)
		fmt.Println(green("dropped"))

	case "dpush":
		for _, a := range args {
			c.ctx.Push(parseValue(a))
		}
		fmt.Println(green(fmt.Sprintf("dsp = %d", c.ctx.Depth())))

	case "depth":
		fmt.Println(blue(strconv.Itoa(c.ctx.Depth())))

	case "pop":
		mark := 0
		if len(args) > 0 {
			m, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad mark %q", args[0])
			}
			mark = m
		}
		if mark < 0 || mark > c.ctx.Depth() {
			return fmt.Errorf("mark %d out of range (dsp = %d)", mark, c.ctx.Depth())
		}
		var out r3.Value
		err := c.ctx.Trap(func() {
			out = c.ctx.PopRangeInto(mark, nil)
		})
		if err != nil {
			return err
		}
		fmt.Println(blue(out.String()))

	case "fn":
		if len(args) < 1 {
			return errors.New("usage: fn <name> <param> ...")
		}
		name := args[0]
		params := make([]r3.Param, len(args[1:]))
		for i, p := range args[1:] {
			params[i] = r3.Param{Name: p}
		}
		c.funcs[name] = r3.NewFunc(name, params,
			func(ctx *r3.Context, f *r3.Frame) r3.Value {
				mark := ctx.Depth()
				for i := 1; i <= f.NumArgs(); i++ {
					ctx.Push(*f.Arg(i))
				}
				return ctx.PopRangeInto(mark, nil)
			})
		fmt.Println(green("defined " + name))

	case "spec":
		if len(args) < 2 {
			return errors.New("usage: spec <name> <target> <param>=<value> ...")
		}
		target, err := c.lookup(args[1])
		if err != nil {
			return err
		}
		bound := map[string]r3.Value{}
		for _, kv := range args[2:] {
			eq := strings.IndexByte(kv, '=')
			if eq <= 0 {
				return fmt.Errorf("bad binding %q", kv)
			}
			bound[kv[:eq]] = parseValue(kv[eq+1:])
		}
		c.funcs[args[0]] = r3.Specialize(args[0], target, bound)
		fmt.Println(green("defined " + args[0]))

	case "adapt":
		if len(args) != 2 {
			return errors.New("usage: adapt <name> <target>")
		}
		target, err := c.lookup(args[1])
		if err != nil {
			return err
		}
		name := args[0]
		c.funcs[name] = r3.Adapt(name, target,
			func(ctx *r3.Context, f *r3.Frame) r3.Value {
				parts := make([]string, f.NumArgs())
				for i := 1; i <= f.NumArgs(); i++ {
					parts[i-1] = f.Arg(i).String()
				}
				fmt.Println(green(name + " prologue: [" + strings.Join(parts, " ") + "]"))
				return r3.None()
			})
		fmt.Println(green("defined " + name))

	case "call":
		if len(args) < 1 {
			return errors.New("usage: call <name> <value> ...")
		}
		fn, err := c.lookup(args[0])
		if err != nil {
			return err
		}
		vals := make([]r3.Value, len(args[1:]))
		for i, a := range args[1:] {
			vals[i] = parseValue(a)
		}
		var out r3.Value
		err = c.ctx.Trap(func() {
			out = c.ctx.Apply(r3.FuncVal(fn), vals...)
		})
		if err != nil {
			return err
		}
		if out.IsThrown() {
			fmt.Println(red("thrown: " + out.String()))
			return nil
		}
		fmt.Println(blue(out.String()))

	case "throw":
		if len(args) != 2 {
			return errors.New("usage: throw <label> <value>")
		}
		if c.thrown != nil {
			return errors.New("a throw is already in flight; catch it first")
		}
		label := parseValue(args[0])
		c.ctx.ConvertToThrown(&label, parseValue(args[1]))
		c.thrown = &label
		fmt.Println(green("thrown with label " + args[0]))

	case "catch":
		if c.thrown == nil {
			return errors.New("nothing in flight (the empty-catch bug check would trip)")
		}
		var dest r3.Value
		c.ctx.CatchThrown(&dest, c.thrown)
		c.thrown = nil
		fmt.Println(blue("caught: " + dest.String()))

	case "roots":
		count := 0
		c.ctx.ScanRoots(func(v *r3.Value) {
			fmt.Printf("  %s\n", blue(v.String()))
			count++
		})
		fmt.Println(green(fmt.Sprintf("%d live roots", count)))

	case "stats":
		allocated, freed := c.ctx.ChunkStats()
		fmt.Printf("chunkers allocated %d, freed %d; dsp %d; console chunks %d\n",
			allocated, freed, c.ctx.Depth(), len(c.chunks))

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func main() {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	c := newConsole()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if err != nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), ":") {
			if strings.TrimSpace(strings.ToLower(line)) == ":quit" {
				return
			}
			fmt.Println("unknown command. Type :quit to exit.")
			continue
		}

		if err := c.run(line); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		} else {
			ln.AppendHistory(line)
		}
	}
}
