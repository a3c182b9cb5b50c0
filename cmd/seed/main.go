package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinician-scheduling/internal/app"
	"github.com/hackgods/clinician-scheduling/internal/auth"
	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/logging"
	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

type seedOptions struct {
	clinicians int
	patients   int
	days       int
	tokenTTL   time.Duration
	seed       uint64
}

func main() {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed clinicians with working hours and generated slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.clinicians, "clinicians", 20, "number of clinicians to create")
	cmd.Flags().IntVar(&opts.patients, "patients", 50, "number of patient tokens to print")
	cmd.Flags().IntVar(&opts.days, "days", 14, "days of slots to generate per clinician")
	cmd.Flags().DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of printed dev tokens")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "faker seed, 0 for random")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("seed needs STORE_DRIVER=%s, the memory store does not outlive this process", config.StorePostgres)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	faker := gofakeit.New(opts.seed)
	tokens := auth.NewTokens(cfg.JWTSecret, "clinician-scheduling")

	fmt.Println("# clinicians: id, name, token")
	for i := 0; i < opts.clinicians; i++ {
		doctor := scheduling.Caller{ID: uuid.New(), Role: scheduling.RoleClinician}
		name := "Dr. " + faker.LastName()

		if err := seedClinician(ctx, deps.Service, faker, doctor, opts.days, logger); err != nil {
			return fmt.Errorf("seed clinician %s: %w", doctor.ID, err)
		}

		tok, err := tokens.Issue(doctor, opts.tokenTTL)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", doctor.ID, name, tok)
	}

	fmt.Println("# patients: id, name, token")
	for i := 0; i < opts.patients; i++ {
		patient := scheduling.Caller{ID: uuid.New(), Role: scheduling.RolePatient}
		tok, err := tokens.Issue(patient, opts.tokenTTL)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", patient.ID, faker.Name(), tok)
	}

	logger.Info().Int("clinicians", opts.clinicians).Int("patients", opts.patients).Msg("seed complete")
	return nil
}

var slotLengths = []int{15, 20, 30, 45, 60}

// seedClinician gives the clinician a weekday schedule with a random window
// and slot length, then generates the first days of slots.
func seedClinician(ctx context.Context, svc *scheduling.Service, faker *gofakeit.Faker, doctor scheduling.Caller, days int, logger zerolog.Logger) error {
	duration := slotLengths[faker.Number(0, len(slotLengths)-1)]
	buffer := faker.RandomInt([]int{0, 0, 5, 10})
	start := scheduling.NewClockTime(faker.Number(7, 10), 0)
	end := scheduling.NewClockTime(faker.Number(15, 18), 30*faker.Number(0, 1))

	for day := time.Monday; day <= time.Friday; day++ {
		// some clinicians take Wednesday afternoons off
		dayEnd := end
		if day == time.Wednesday && faker.Bool() {
			dayEnd = scheduling.NewClockTime(13, 0)
		}

		_, err := svc.SetWorkingHours(ctx, doctor, scheduling.WorkingHoursRule{
			DoctorID:            doctor.ID,
			DayOfWeek:           int(day),
			StartTime:           start,
			EndTime:             dayEnd,
			SlotDurationMinutes: duration,
			BufferMinutes:       buffer,
		})
		if err != nil {
			return err
		}
	}

	run, err := svc.GenerateSlots(ctx, doctor, doctor.ID, days)
	if err != nil {
		return err
	}
	logger.Debug().
		Str("doctor_id", doctor.ID.String()).
		Int("slot_minutes", duration).
		Int("slots_generated", run.SlotsGenerated).
		Msg("clinician seeded")
	return nil
}
