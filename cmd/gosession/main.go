// Command gosession drives an instance session from the command line. Run
// "gosession demo" for a self-contained walkthrough against an in-process
// instance.
package main

import "github.com/MrEthical07/goSession/cmd/gosession/cmd"

func main() {
	cmd.Execute()
}
