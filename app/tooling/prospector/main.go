// This program searches for proofs and submits them to a ledger.
package main

import "github.com/ardanlabs/powledger/app/tooling/prospector/cmd"

func main() {
	cmd.Execute()
}
