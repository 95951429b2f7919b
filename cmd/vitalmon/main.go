package main

import (
	heartwolf "github.com/doismellburning/heartwolf/src"
)

func main() {
	heartwolf.VitalMonMain()
}
