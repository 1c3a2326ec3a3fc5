package main

import (
	"log"

	"github.com/MrSnakeDoc/connpane/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ connpane failed: %v", err)
	}
}
