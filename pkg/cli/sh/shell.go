// Package sh provides the interactive shell of nvctl.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/nv.go/pkg/env"
	"github.com/robotalks/nv.go/pkg/nv"
)

// Shell provides ishell backed interactive shell over one Store.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Store  *nv.Store
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	autoOpen   bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.BoolVar(&autoOpen, "open", autoOpen, "Open the configured media on start.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		AutoOpen:    autoOpen || evalOnly,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requiring an open Store.
func MustBeOpen(fn func(c *ishell.Context, s *nv.Store)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		store := ShellFrom(c).Store
		if store == nil {
			c.Err(fmt.Errorf("no storage open"))
			return
		}
		fn(c, store)
	}
}

// Print prints v as JSON in JSON mode, otherwise text.
func Print(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Open opens the storage described by conf, replacing the current one.
func (s *Shell) Open(conf *env.Config) error {
	store, err := conf.OpenStore()
	if err != nil {
		return err
	}
	s.Close()
	s.Store, s.Config = store, conf
	s.Shell.SetPrompt(fmt.Sprintf("%s:%d > ", conf.Media, conf.Size))
	return nil
}

// Close drains and closes the current storage.
func (s *Shell) Close() error {
	if s.Store == nil {
		return nil
	}
	err := s.Store.Close()
	s.Store = nil
	s.Shell.SetPrompt(unopenedPrompt)
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(s.Config); err != nil {
			log.Fatalf("open %s media failed: %v", s.Config.Media, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens a storage.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[MEDIA [SIZE [PATH]]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			conf, err := ParseOpenArgs(s.Config, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.Open(conf); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the current storage.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Close(); err != nil {
				c.Err(err)
			}
		},
	}
)

// ParseOpenArgs overrides media, size and path of base with args.
func ParseOpenArgs(base *env.Config, args []string) (*env.Config, error) {
	conf := *base
	if len(args) > 3 {
		return nil, fmt.Errorf("too many arguments")
	}
	if len(args) > 0 {
		conf.Media = args[0]
	}
	if len(args) > 1 {
		if _, err := fmt.Sscanf(args[1], "%d", &conf.Size); err != nil || conf.Size <= 0 {
			return nil, fmt.Errorf("invalid size %q", args[1])
		}
	}
	if len(args) > 2 {
		conf.Path = args[2]
	}
	return &conf, nil
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := env.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).Run(flag.Args()...)
}
