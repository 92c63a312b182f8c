// Command scribe transcribes recordings through the best available
// backend and titles and summarizes the result.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
