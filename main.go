package main

import "flacshare/cmd"

func main() {
	cmd.Execute()
}
