package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	flag "github.com/spf13/pflag"

	"github.com/junevm/flashunlock/internal/setup"
	"github.com/junevm/flashunlock/internal/unlock"
)

// main checks whether this machine is ready for the unlock tool. It only
// reads: nothing here touches the chipset registers.
func main() {
	rcba := flag.Uint64("rcba", unlock.DefaultRCBA, "physical address of the root complex register block")
	flag.Parse()

	warnings, err := setup.Check(*rcba)
	for _, w := range warnings {
		fmt.Println("⚠️ " + w)
	}
	if err != nil {
		if merr, ok := err.(*multierror.Error); ok {
			for _, e := range merr.Errors {
				fmt.Println("❌ " + e.Error())
			}
		} else {
			fmt.Println("❌ " + err.Error())
		}
		os.Exit(1)
	}
	fmt.Println("✅ Ready: run 'sudo unlock' to continue.")
}
