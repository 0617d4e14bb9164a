package main

import "github.com/novafond/advisorbot/cmd"

func main() {
	cmd.Execute()
}
