package main

import "github.com/zephyr/powgate/app/tooling/powgate/cmd"

func main() {
	cmd.Execute()
}
