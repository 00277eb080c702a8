/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/telcoops/vnf-lifecycle-manager/cmd"

func main() {
	cmd.Execute()
}
