package main

import "relaychat-backend/internal/cli"

func main() {
	cli.Execute()
}
