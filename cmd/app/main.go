package main

import (
	"fmt"
	"os"

	"github.com/rohitxdev/nftsol-api/application"
)

func main() {
	if err := application.Run(os.Args[1:]); err != nil {
		panic(fmt.Errorf("failed to run application: %w", err))
	}
}
