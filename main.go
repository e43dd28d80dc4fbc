package main

import "github.com/mpapenbr/gaterace-service-go/cmd"

func main() {
	cmd.Execute()
}
