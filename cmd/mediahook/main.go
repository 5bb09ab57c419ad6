package main

import "github.com/javi11/mediahook/cmd/mediahook/cmd"

func main() {
	cmd.Execute()
}
