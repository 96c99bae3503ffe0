package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/db"
	"github.com/hackgods/patient-queue-engine/internal/ids"
	"github.com/hackgods/patient-queue-engine/internal/patient"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	count := flag.Int("patients", 500, "number of fake patients to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if err := seedPatients(context.Background(), patient.NewPgDirectory(pool), *count); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, dir *patient.PgDirectory, count int) error {
	log.Printf("seeding %d patients", count)

	genders := []string{"male", "female", "other"}
	created, skipped := 0, 0

	for i := 0; i < count; i++ {
		uhid := gofakeit.Numerify("UHID-##########")
		age := gofakeit.Number(1, 95)
		gender := genders[gofakeit.Number(0, len(genders)-1)]

		_, err := dir.Create(ctx, patient.Patient{
			ID:     ids.New(ids.KindPatient),
			UHID:   &uhid,
			Name:   gofakeit.Name(),
			Phone:  gofakeit.Numerify("##########"),
			Age:    &age,
			Gender: &gender,
		})
		if errors.Is(err, patient.ErrDuplicateUHID) {
			skipped++
			continue
		}
		if err != nil {
			return err
		}

		created++
		if created%100 == 0 {
			log.Printf("patients seeded: %d/%d", created, count)
		}
	}

	log.Printf("patients seeded: created=%d skipped_duplicates=%d", created, skipped)
	return nil
}
