package main

import "github.com/ugagro/greenwatch/cmd"

func main() {
	cmd.Execute()
}
