// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/darkpan/cmd/darkpan/cmd"
)

func main() {
	cmd.Execute()
}
