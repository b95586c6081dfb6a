package main

import midikontrol "github.com/0h41/midikontrol/src"

func main() {
	midikontrol.Run()
}
