package main

import (
	"github.com/robotalks/nv.go/pkg/cli/sh"
	"github.com/robotalks/nv.go/pkg/env"

	_ "github.com/robotalks/nv.go/pkg/cli/cmds/storage"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
