package main

import "artist-momentum/internal/cli"

func main() {
	cli.Execute()
}
