package main

import "github.com/reisewerk/migrate/internal/cli"

func main() {
	cli.Execute()
}
