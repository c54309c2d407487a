package main

import "todo-backend/interfaces/cli"

func main() {
	cli.Execute()
}
