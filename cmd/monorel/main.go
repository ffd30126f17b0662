// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/monorel/cmd/monorel/cmd"
)

func main() {
	cmd.Execute()
}
