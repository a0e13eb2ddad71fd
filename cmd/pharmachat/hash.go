package main

import (
	"fmt"
	"log"

	"github.com/manifoldco/promptui"

	"github.com/amitbl/pharmachat/pkg/auth"
)

// runHash prints a bcrypt hash for a password, to paste into users.json.
func runHash(args []string) {
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
	}
	password, err := prompt.Run()
	if err != nil {
		log.Fatal(err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
