package main

import datamaker "github.com/jaym/datamaker/apps/datamaker/cmd"

func main() {
	datamaker.Execute()
}
