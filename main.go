package main

import "github.com/khanhnv2901/nginx-audit/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
