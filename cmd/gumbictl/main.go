package main

import "github.com/e2thenegpii/gumbi/cmd/gumbictl/cmd"

func main() {
	cmd.Execute()
}
