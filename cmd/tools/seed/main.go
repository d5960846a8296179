// Command seed plants deterministic demo accounts, channels, and videos in
// the datastore so a fresh environment has something to browse. Running it
// with --purge removes previously planted videos instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"viewtube/internal/models"
	"viewtube/internal/storage"
)

const seedPassword = "Seed1234!demo"

type seedUser struct {
	name     string
	username string
	email    string
	channel  string
	category string
	videos   []seedVideo
}

type seedVideo struct {
	title       string
	description string
	category    string
}

var fixtures = []seedUser{
	{
		name:     "Demo Creator",
		username: "democreator",
		email:    "creator@viewtube.demo",
		channel:  "Demo Creations",
		category: "Tech",
		videos: []seedVideo{
			{title: "Getting started with the API", description: "A quick tour of the endpoints.", category: "Tech"},
			{title: "Uploading your first video", description: "Thumbnails, files, and categories.", category: "Tech"},
		},
	},
	{
		name:     "Demo Musician",
		username: "demomusician",
		email:    "musician@viewtube.demo",
		channel:  "Demo Sounds",
		category: "Music",
		videos: []seedVideo{
			{title: "Late night synth session", description: "Improvised pads and arps.", category: "Music"},
		},
	},
}

func main() {
	var (
		jsonPath    string
		postgresDSN string
		seedTag     string
		purge       bool
	)

	flag.StringVar(&jsonPath, "json", "", "Path to the JSON datastore (store.json)")
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.StringVar(&seedTag, "tag", "demo-seed", "Tag recorded on planted videos")
	flag.BoolVar(&purge, "purge", false, "Remove videos planted with the tag instead of seeding")
	flag.Parse()

	if jsonPath == "" && postgresDSN == "" {
		fatalf("either --json or --postgres-dsn must be provided")
	}
	if jsonPath != "" && postgresDSN != "" {
		fatalf("only one datastore option may be provided")
	}
	if strings.TrimSpace(seedTag) == "" {
		fatalf("--tag cannot be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, err := openRepository(ctx, jsonPath, postgresDSN)
	if err != nil {
		fatalf("open datastore: %v", err)
	}
	defer closeRepository(ctx, repo)

	if purge {
		removed, err := repo.DeleteVideosBySeedTag(ctx, seedTag)
		if err != nil {
			fatalf("purge seeded videos: %v", err)
		}
		fmt.Printf("Removed %d seeded video(s) tagged %q.\n", len(removed), seedTag)
		return
	}

	planted := 0
	for _, fixture := range fixtures {
		if err := plant(ctx, repo, fixture, seedTag, &planted); err != nil {
			fatalf("seed %s: %v", fixture.email, err)
		}
	}
	fmt.Printf("Seed complete: %d video(s) planted with tag %q.\n", planted, seedTag)
	fmt.Printf("Demo accounts use the password %q.\n", seedPassword)
}

// plant is idempotent for users and channels so the tool can be re-run:
// existing accounts are reused, only videos are added.
func plant(ctx context.Context, repo storage.Repository, fixture seedUser, seedTag string, planted *int) error {
	user, err := repo.CreateUser(ctx, storage.CreateUserParams{
		Name:     fixture.name,
		Username: fixture.username,
		Email:    fixture.email,
		Password: seedPassword,
	})
	if storage.KindOf(err) == storage.KindConflict {
		user, err = repo.FindUserByEmail(ctx, fixture.email)
	}
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	channel, err := repo.ChannelByOwner(ctx, user.ID)
	if storage.KindOf(err) == storage.KindNotFound {
		channel, err = repo.CreateChannel(ctx, storage.CreateChannelParams{
			OwnerID:     user.ID,
			Title:       fixture.channel,
			Description: "Planted by the seed tool.",
			Category:    fixture.category,
		})
	}
	if err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}

	existing, err := repo.ListVideos(ctx, storage.VideoListOptions{ChannelID: channel.ID, SeedTag: seedTag})
	if err != nil {
		return fmt.Errorf("list seeded videos: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, video := range existing {
		have[video.Title] = true
	}

	for _, v := range fixture.videos {
		if have[v.title] {
			continue
		}
		if _, err := repo.CreateVideo(ctx, storage.CreateVideoParams{
			ChannelID:   channel.ID,
			UploaderID:  user.ID,
			Title:       v.title,
			Description: v.description,
			Category:    v.category,
			Thumbnail:   models.MediaAsset{URL: "local://seed/thumbnails/" + slug(v.title) + ".png", PublicID: "seed/thumbnails/" + slug(v.title)},
			Media:       models.MediaAsset{URL: "local://seed/videos/" + slug(v.title) + ".mp4", PublicID: "seed/videos/" + slug(v.title)},
			SeedTag:     seedTag,
		}); err != nil {
			return fmt.Errorf("create video %q: %w", v.title, err)
		}
		*planted++
	}
	return nil
}

func slug(title string) string {
	lower := strings.ToLower(title)
	var builder strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == ' ' || r == '-':
			builder.WriteRune('-')
		}
	}
	return builder.String()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openRepository(ctx context.Context, jsonPath, postgresDSN string) (storage.Repository, error) {
	if jsonPath != "" {
		return storage.NewStorage(jsonPath)
	}
	return storage.NewPostgresRepository(ctx, postgresDSN)
}

func closeRepository(ctx context.Context, repo storage.Repository) {
	if closer, ok := repo.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "close datastore: %v\n", err)
		}
	} else if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close datastore: %v\n", err)
		}
	}
}
