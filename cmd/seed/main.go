// Command main runs the database seeder for Inkwell.
package main

import (
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 40, "Number of posts to create")
	commentsPerPost := flag.Int("comments", 4, "Average comments per post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	users, err := s.SeedUsers(*numUsers)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	posts, err := s.SeedPosts(users, *numPosts)
	if err != nil {
		log.Fatalf("Post seeding failed: %v", err)
	}
	if err := s.SeedComments(users, posts, *commentsPerPost); err != nil {
		log.Fatalf("Comment seeding failed: %v", err)
	}

	log.Println("All done. Every seeded user has the password:", seed.DefaultPassword)
}
