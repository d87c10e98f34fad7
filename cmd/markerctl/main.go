// Command markerctl is a headless marker client. It keeps an in-memory marker
// store in sync with the marker API and answers list, nearby and create
// requests from it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
