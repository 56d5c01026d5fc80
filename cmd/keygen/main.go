package main

import (
	"fmt"
	"log"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/privacy"
)

func main() {
	encodedKey, err := privacy.GenerateEncodedMasterKey()
	if err != nil {
		log.Fatalf("Failed to generate master key: %v", err)
	}

	fmt.Printf("Generated master key (for ENCRYPTION_MASTER_KEY env var): \n———\n%s\n———\n", encodedKey)
}
