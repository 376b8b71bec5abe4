package main

import "github.com/vibast-solutions/ms-go-pix/cmd"

func main() {
	cmd.Execute()
}
