package main

import (
	"log"

	"thewire/internal/httpapi"
)

func main() {
	if err := httpapi.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
