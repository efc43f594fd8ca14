package main

import (
	"os"

	"github.com/teamwire/teamwire/cmd/root"
)

func main() {
	os.Exit(root.Execute())
}
