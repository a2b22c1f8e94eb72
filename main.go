package main

import "github.com/cmmoran/swarmup/cmd"

func main() {
	cmd.Execute()
}
