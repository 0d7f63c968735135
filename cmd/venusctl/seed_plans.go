package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
)

type planSeedFile struct {
	Plans []services.PlanInput `yaml:"plans"`
}

func seedPlansCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-plans",
		Short: "Create payment plans from a YAML file",
		Long: `Create payment plans from a YAML file of the form:

  plans:
    - plan: MONTHLY
      amount: 500
      months: 1
    - plan: ANNUAL
      amount: 5000
      months: 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			plans, err := loadPlanSeeds(f)
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := services.AutoMigrate(db); err != nil {
				return err
			}

			created, err := seedPlans(cmd.Context(), services.NewPlanService(db, nil), plans)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d payment plans\n", len(created))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "plans.yaml", "YAML file with plan definitions")
	return cmd
}

// loadPlanSeeds decodes and validates a seed document
func loadPlanSeeds(r io.Reader) ([]services.PlanInput, error) {
	var doc planSeedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}

	for i, p := range doc.Plans {
		if !p.Plan.Valid() {
			return nil, fmt.Errorf("plan %d: unknown plan kind %q", i, p.Plan)
		}
		if p.Amount <= 0 || p.Months <= 0 {
			return nil, fmt.Errorf("plan %d (%s): amount and months must be positive", i, p.Plan)
		}
	}
	return doc.Plans, nil
}

func seedPlans(ctx context.Context, svc *services.PlanService, plans []services.PlanInput) ([]*models.PaymentPlan, error) {
	created := make([]*models.PaymentPlan, 0, len(plans))
	for _, in := range plans {
		plan, err := svc.Create(ctx, models.ActorSystem, in)
		if err != nil {
			return created, fmt.Errorf("failed to create %s plan: %w", in.Plan, err)
		}
		created = append(created, plan)
	}
	return created, nil
}
