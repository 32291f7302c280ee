// Command thrashsim replays synthetic access patterns against the thrashing engine and reports the
// hints it returned.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
