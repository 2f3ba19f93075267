package main

import "github.com/toricodesthings/pdf-scale-finder/internal/cli"

func main() {
	cli.Execute()
}
