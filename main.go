package main

import "github.com/jmehdipour/contact-relay/cmd"

func main() {
	cmd.Execute()
}
