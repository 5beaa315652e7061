package main

import "github.com/d1childress/ccmanager/cmd"

func main() {
	cmd.Execute()
}
