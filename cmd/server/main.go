package main

import (
	"fmt"
	"os"

	"marketlens/internal/app"
)

func main() {
	a, err := app.NewApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketlens: %v\n", err)
		os.Exit(1)
	}
	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "marketlens: %v\n", err)
		os.Exit(1)
	}
}
