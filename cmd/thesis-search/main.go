// Command thesis-search searches the thesis catalogue from the terminal and
// maintains the indexes and models behind it.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/cmd/thesis-search/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
