package main

import "github.com/oshokin/alarm-agent/cmd/alarm-agent/cmd"

func main() {
	cmd.Execute()
}
