package main

import "fmt"

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(output, "unrealctl version %s\n", version)
	return nil
}
