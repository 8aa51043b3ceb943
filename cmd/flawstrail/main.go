// cmd/flawstrail/main.go
package main

import "flawstrail/cmd/flawstrail/commands"

func main() {
	commands.Execute()
}
