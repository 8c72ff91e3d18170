package main

import (
	"github.com/obinexus/polycall-sub002/cmd"
)

func main() {
	cmd.Execute()
}
