// Command fixctl is the engine's operational CLI: start an acceptor or
// initiator session, validate a data dictionary, and inspect a session
// store (SPEC_FULL.md MODULE MAP, grounded in sylr.dev/fix's cobra-based
// `fix` command tree).
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
