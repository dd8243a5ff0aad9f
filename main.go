package main

import "github.com/kidsafe/access-management/cmd"

func main() {
	cmd.Execute()
}
