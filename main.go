package main

import "github.com/DominicWuest/calcbench/cmd"

func main() {
	cmd.Execute()
}
