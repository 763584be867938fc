package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/nv.go/pkg/cli/sh"
	"github.com/robotalks/nv.go/pkg/nv"
	"github.com/robotalks/nv.go/pkg/nv/codec"
)

// CommitTimeout bounds the commit command.
var CommitTimeout = 10 * time.Second

func kindAddr(args []string, want int) (codec.Kind, int, error) {
	if len(args) < want {
		return 0, 0, fmt.Errorf("expect at least %d arguments", want)
	}
	kind, err := codec.ParseKind(args[0])
	if err != nil {
		return 0, 0, err
	}
	addr, err := ParseAddr(args[1])
	return kind, addr, err
}

func writeCmd(update bool) func(*ishell.Context, *nv.Store) {
	return func(c *ishell.Context, s *nv.Store) {
		kind, addr, err := kindAddr(c.Args, 3)
		if err != nil {
			c.Err(err)
			return
		}
		if err := Write(s, kind, addr, strings.Join(c.Args[2:], " "), update); err != nil {
			c.Err(err)
			return
		}
		sh.Print(c, map[string]bool{"committed": s.Committed()}, "OK")
	}
}

var (
	// ReadCmd reads a typed value.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "KIND ADDR",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			kind, addr, err := kindAddr(c.Args, 2)
			if err != nil {
				c.Err(err)
				return
			}
			val, err := Read(s, kind, addr)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]string{"value": val}, val)
		}),
	}

	// WriteCmd writes a typed value.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "KIND ADDR VALUE",
		Func:    sh.MustBeOpen(writeCmd(false)),
	}

	// UpdateCmd writes a typed value unless unchanged.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "KIND ADDR VALUE",
		Func:    sh.MustBeOpen(writeCmd(true)),
	}

	// PollCmd runs flush steps.
	PollCmd = ishell.Cmd{
		Name:    "poll",
		Aliases: []string{"p"},
		Help:    "[N]",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			n := 1
			if len(c.Args) > 0 {
				v, err := strconv.Atoi(c.Args[0])
				if err != nil || v <= 0 {
					c.Err(fmt.Errorf("invalid count %q", c.Args[0]))
					return
				}
				n = v
			}
			polls, err := Poll(s, n)
			if err != nil {
				c.Err(err)
			}
			sh.Print(c, map[string]interface{}{"polls": polls, "committed": s.Committed()},
				fmt.Sprintf("%d polls, committed: %v", polls, s.Committed()))
		}),
	}

	// CommitCmd polls until everything is committed.
	CommitCmd = ishell.Cmd{
		Name: "commit",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			ctx, cancel := context.WithTimeout(context.Background(), CommitTimeout)
			defer cancel()
			if err := Commit(ctx, s); err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]bool{"committed": true}, "OK")
		}),
	}

	// CommittedCmd reports whether nothing is pending.
	CommittedCmd = ishell.Cmd{
		Name: "committed",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			sh.Print(c, map[string]bool{"committed": s.Committed()}, strconv.FormatBool(s.Committed()))
		}),
	}

	// ValidCmd checks the persisted image.
	ValidCmd = ishell.Cmd{
		Name: "valid",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			valid := s.Valid()
			sh.Print(c, map[string]bool{"valid": valid}, strconv.FormatBool(valid))
		}),
	}

	// StatsCmd prints the store counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			st := s.Stats()
			sh.Print(c, st, FormatStats(st))
		}),
	}

	// PendingCmd lists addresses waiting for flush.
	PendingCmd = ishell.Cmd{
		Name: "pending",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			addrs := s.PendingAddrs()
			if addrs == nil {
				addrs = []int{}
			}
			sh.Print(c, addrs, fmt.Sprint(addrs))
		}),
	}

	// DumpCmd prints a hex dump.
	DumpCmd = ishell.Cmd{
		Name:    "dump",
		Aliases: []string{"x"},
		Help:    "[ADDR [LEN]]",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			addr, length := 0, s.Size()
			var err error
			if len(c.Args) > 0 {
				if addr, err = ParseAddr(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
				length = s.Size() - addr
			}
			if len(c.Args) > 1 {
				if length, err = ParseAddr(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			out, err := Dump(s, addr, length)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		}),
	}

	// FormatCmd fills the whole address space.
	FormatCmd = ishell.Cmd{
		Name: "format",
		Help: "[FILL]",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			fill := uint64(0xff)
			if len(c.Args) > 0 {
				var err error
				if fill, err = strconv.ParseUint(c.Args[0], 0, 8); err != nil {
					c.Err(err)
					return
				}
			}
			if err := s.Format(byte(fill)); err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]bool{"committed": s.Committed()}, "OK")
		}),
	}

	// WriteThroughCmd toggles synchronous writes.
	WriteThroughCmd = ishell.Cmd{
		Name:    "writethrough",
		Aliases: []string{"wt"},
		Help:    "[on|off]",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on", "true", "1":
					s.WriteThrough(true)
				case "off", "false", "0":
					s.WriteThrough(false)
				default:
					c.Err(fmt.Errorf("expect on or off"))
					return
				}
			}
			sh.Print(c, map[string]bool{"writeThrough": s.IsWriteThrough()}, strconv.FormatBool(s.IsWriteThrough()))
		}),
	}

	// ExportCmd saves the image to a file.
	ExportCmd = ishell.Cmd{
		Name: "export",
		Help: "PATH",
		Func: sh.MustBeOpen(func(c *ishell.Context, s *nv.Store) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("expect PATH"))
				return
			}
			if err := Export(s, c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]string{"path": c.Args[0]}, "OK")
		}),
	}
)

func init() {
	sh.AddCmds(
		&ReadCmd,
		&WriteCmd,
		&UpdateCmd,
		&PollCmd,
		&CommitCmd,
		&CommittedCmd,
		&ValidCmd,
		&StatsCmd,
		&PendingCmd,
		&DumpCmd,
		&FormatCmd,
		&WriteThroughCmd,
		&ExportCmd,
	)
}
