package main

import "github.com/alpha216/dwroadmap/cmd"

func main() {
	cmd.Execute()
}
