package main

import "github.com/hafnium/expense-tracker/cmd"

func main() {
	cmd.Execute()
}
