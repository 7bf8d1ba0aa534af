// Package main is the entry point of newslens.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	newslens "github.com/kart-io/newslens/internal/newslens"
)

func main() {
	newslens.NewApp().Run()
}
