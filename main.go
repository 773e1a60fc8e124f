package main

import "github.com/northcutted/bundle-treemap/cmd"

func main() {
	cmd.Execute()
}
