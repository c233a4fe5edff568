package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/internal/seed"
	"github.com/okian/versus/internal/simulate"
)

func newSeedCmd() *cobra.Command {
	var (
		file    string
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create profiles from a YAML seed file",
		Long: `Create every profile of a YAML seed file on a running server.
Profiles that already exist are skipped.`,
		Example: "  versusctl seed --file profiles.yaml --url http://localhost:9080",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := seed.Load(file)
			if err != nil {
				return err
			}
			creator := remoteCreator{client: simulate.NewClient(baseURL, timeout)}
			res, err := seed.Apply(cmd.Context(), creator, profiles)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", res.Created, res.Skipped)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (required)")
	cmd.Flags().StringVar(&baseURL, "url", defaultBaseURL, "base URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// remoteCreator creates profiles through the HTTP API.
type remoteCreator struct {
	client *simulate.Client
}

func (r remoteCreator) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	out, err := r.client.CreateProfile(ctx, simulate.Profile{
		ID:             p.ID,
		Name:           p.Name,
		Title:          p.Title,
		Company:        p.Company,
		Major:          p.Major,
		GraduationYear: p.GraduationYear,
		IsStudent:      p.IsStudent,
		Location:       p.Location,
		LinkedInURL:    p.LinkedInURL,
	})
	if simulate.IsCode(err, "duplicate") {
		return model.Profile{}, fmt.Errorf("%w: %s", repository.ErrDuplicate, p.ID)
	}
	if err != nil {
		return model.Profile{}, err
	}
	p.ID, p.Rating = out.ID, out.Rating
	return p, nil
}
