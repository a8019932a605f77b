package main

import "github.com/iksnae/ellipsis-codec/cmd"

func main() {
	cmd.Execute()
}
