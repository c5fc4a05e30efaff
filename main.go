package main

import "github.com/ValentinKolb/relay/cmd"

func main() {
	cmd.Execute()
}
