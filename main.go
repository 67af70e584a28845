package main

import "github.com/hmoradi/banking-saga/cmd"

func main() {
	cmd.Execute()
}
