// ABOUTME: Entry point for the clocksync command
// ABOUTME: Hands control to the cobra command tree
package main

import "github.com/Resonate-Protocol/clocksync-go/internal/cli"

func main() {
	cli.Execute()
}
