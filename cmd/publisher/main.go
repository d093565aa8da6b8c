package main

import (
	"os"
)

func main() {
	if err := GetCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
