package main

import "github.com/Rans7ord/Construction-sub000/cmd"

func main() {
	cmd.Execute()
}
