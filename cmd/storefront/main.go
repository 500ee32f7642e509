package main

import "github.com/Skotchmaster/gedebog_store/internal/cli"

func main() {
	cli.Execute()
}
