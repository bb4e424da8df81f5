// The seed tool fills a fresh store with generated reference data for
// local development: relation types, persons, documents, project
// variations and relations between them.
package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"os"

	"github.com/go-faker/faker/v4"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/helper/env"
	"archivum/src/infra/postgres"
	"archivum/src/storage"
)

func main() {
	log.SetOutput(os.Stdout)

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(h)

	pool, err := postgres.NewPostgresClient(
		env.MustGetString("DB_HOST"),
		env.GetString("DB_PORT", "5432"),
		env.MustGetString("DB_NAME"),
		env.MustGetString("DB_USER"),
		env.MustGetString("DB_PASSWORD"),
		env.GetInt("DB_MAX_POOL_CONNECTIONS", 10),
	)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}

	store := postgres.NewStore(pool)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	registry := domain.NewRegistry()
	graphStorage := storage.NewGraphStorage(logger, store, registry)
	if err := graphStorage.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	personCount := env.GetInt("SEED_PERSONS", 100)
	documentCount := env.GetInt("SEED_DOCUMENTS", 50)
	relationCount := env.GetInt("SEED_RELATIONS", 200)

	change := entities.NewChange("seed-tool", "Admin")

	authorTypeID, err := graphStorage.AddSystemEntity(ctx, &entities.RelationType{
		RegularName: "isAuthorOf",
		InverseName: "isAuthoredBy",
		SourceKind:  entities.KindPerson,
		TargetKind:  entities.KindDocument,
	})
	if err != nil {
		log.Fatalf("Failed to seed relation type: %v", err)
	}
	knowsTypeID, err := graphStorage.AddSystemEntity(ctx, &entities.RelationType{
		RegularName: "knowsPerson",
		InverseName: "knowsPerson",
		Symmetric:   true,
		SourceKind:  entities.KindPerson,
		TargetKind:  entities.KindPerson,
	})
	if err != nil {
		log.Fatalf("Failed to seed relation type: %v", err)
	}

	personIDs := make([]string, 0, personCount)
	for i := 0; i < personCount; i++ {
		id, err := graphStorage.AddDomainEntity(ctx, randomPerson(), change)
		if err != nil {
			log.Fatalf("Failed to seed person: %v", err)
		}
		personIDs = append(personIDs, id)
	}

	documentIDs := make([]string, 0, documentCount)
	for i := 0; i < documentCount; i++ {
		id, err := graphStorage.AddDomainEntity(ctx, randomDocument(), change)
		if err != nil {
			log.Fatalf("Failed to seed document: %v", err)
		}
		documentIDs = append(documentIDs, id)
	}

	// Promote a third of the persons into the project variation.
	for i, id := range personIDs {
		if i%3 != 0 {
			continue
		}
		variant := &entities.EMWPerson{Residence: faker.GetRealAddress().City}
		variant.ID = id
		variant.Rev = 2
		if err := graphStorage.AddVariant(ctx, variant, change); err != nil {
			log.Fatalf("Failed to seed variant for %s: %v", id, err)
		}
	}

	seeded := 0
	for i := 0; i < relationCount; i++ {
		rel := randomRelation(authorTypeID, knowsTypeID, personIDs, documentIDs)
		if rel == nil {
			continue
		}
		if _, err := graphStorage.AddRelation(ctx, rel, change); err != nil {
			log.Fatalf("Failed to seed relation: %v", err)
		}
		seeded++
	}

	logger.Info("Seeding finished",
		"persons", len(personIDs),
		"documents", len(documentIDs),
		"relations", seeded)
}

func randomPerson() *entities.Person {
	return &entities.Person{
		Names:     []string{faker.Name()},
		Gender:    []string{"male", "female", "unknown"}[rand.Intn(3)],
		BirthDate: entities.Datable(faker.Date()),
		Links:     []string{faker.URL()},
	}
}

func randomDocument() *entities.Document {
	return &entities.Document{
		Title:        faker.Sentence(),
		DocumentType: []string{"letter", "book", "charter"}[rand.Intn(3)],
		Date:         entities.Datable(faker.Date()),
		Keywords:     []string{faker.Word(), faker.Word()},
	}
}

func randomRelation(authorTypeID, knowsTypeID string, personIDs, documentIDs []string) *entities.Relation {
	if rand.Intn(2) == 0 && len(documentIDs) > 0 {
		return &entities.Relation{
			TypeID:     authorTypeID,
			SourceID:   personIDs[rand.Intn(len(personIDs))],
			SourceKind: entities.KindPerson,
			TargetID:   documentIDs[rand.Intn(len(documentIDs))],
			TargetKind: entities.KindDocument,
			Accepted:   true,
		}
	}
	source := personIDs[rand.Intn(len(personIDs))]
	target := personIDs[rand.Intn(len(personIDs))]
	if source == target {
		return nil
	}
	return &entities.Relation{
		TypeID:     knowsTypeID,
		SourceID:   source,
		SourceKind: entities.KindPerson,
		TargetID:   target,
		TargetKind: entities.KindPerson,
		Accepted:   true,
	}
}
