// Command saccosphere is the Saccosphere member client.
package main

import "github.com/saccosphere/memberclient/cmd/saccosphere/cmd"

func main() {
	cmd.Execute()
}
