package main

import "github.com/oshokin/mova-viewer/cmd/mova-viewer/cmd"

func main() {
	cmd.Execute()
}
