package main

import "github.com/oshokin/mova-viewer/cmd/mova-ctl/cmd"

func main() {
	cmd.Execute()
}
