package main

import "github.com/Togather-Foundation/webhook-receiver/cmd/server/cmd"

func main() {
	cmd.Execute()
}
