package main

import "github.com/example/study-room-signaling/cmd"

func main() {
	cmd.Execute()
}
