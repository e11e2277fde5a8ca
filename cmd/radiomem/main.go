package main

import "github.com/OpenTraceLab/OpenTraceMem/cmd/radiomem/cmd"

func main() {
	cmd.Execute()
}
