// Command flushsched shows and runs staggered flush schedules.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/flushsched/flushsched/cmd"
)

func main() {
	code := 0
	if err := cmd.Execute(); err != nil {
		code = 1
	}

	atexit.Exit(code)
}
