package main

import (
	"os"

	"swiftget/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
