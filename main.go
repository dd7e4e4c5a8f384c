// Autometa is a batch tool that generates stock-marketplace metadata for
// images, vectors and videos using vision-capable LLM providers, embeds it
// into the files and exports per-marketplace CSVs.
package main

import (
	"fmt"
	"os"

	"github.com/riiicil/autometa/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
