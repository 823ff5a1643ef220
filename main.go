package main

import "github.com/iksnae/multichat/cmd"

func main() {
	cmd.Execute()
}
