// Package seed loads starting profiles from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/versus/internal/adapters/repository"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/pkg/logger"
)

// ErrInvalidSeed reports a seed file that cannot be used.
var ErrInvalidSeed = errors.New("invalid seed file")

// File is the on-disk seed format.
//
//	profiles:
//	  - id: ada
//	    name: Ada Lovelace
//	    major: Mathematics
//	    graduation_year: 1835
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profile is one seeded profile. Ratings are never seeded; every profile
// enters the pool at the initial rating.
type Profile struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Title          string `yaml:"title"`
	Company        string `yaml:"company"`
	Major          string `yaml:"major"`
	GraduationYear int    `yaml:"graduation_year"`
	IsStudent      bool   `yaml:"is_student"`
	Location       string `yaml:"location"`
	LinkedInURL    string `yaml:"linkedin_url"`
}

func (p Profile) model() model.Profile {
	return model.Profile{
		ID:             strings.TrimSpace(p.ID),
		Name:           strings.TrimSpace(p.Name),
		Title:          p.Title,
		Company:        p.Company,
		Major:          p.Major,
		GraduationYear: p.GraduationYear,
		IsStudent:      p.IsStudent,
		Location:       p.Location,
		LinkedInURL:    p.LinkedInURL,
	}
}

// Parse decodes a seed document. Unknown keys are rejected, as are
// entries without a name and repeated ids.
func Parse(r io.Reader) ([]model.Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	seen := make(map[string]struct{}, len(f.Profiles))
	out := make([]model.Profile, 0, len(f.Profiles))
	for i, entry := range f.Profiles {
		p := entry.model()
		if p.Name == "" {
			return nil, fmt.Errorf("%w: profile %d has no name", ErrInvalidSeed, i)
		}
		if p.ID != "" {
			if _, dup := seen[p.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSeed, p.ID)
			}
			seen[p.ID] = struct{}{}
		}
		out = append(out, p)
	}
	return out, nil
}

// Load reads and parses a seed file.
func Load(path string) ([]model.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Creator admits profiles to the pool.
type Creator interface {
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
}

// Result counts what Apply did.
type Result struct {
	Created int
	Skipped int
}

// Apply creates every profile. Profiles that already exist are skipped so
// a seed file can be applied on every start.
func Apply(ctx context.Context, c Creator, profiles []model.Profile) (Result, error) {
	var res Result
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := c.CreateProfile(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("seed profile %q: %w", p.ID, err)
		}
		res.Created++
	}
	logger.Get().Info(ctx, "seed applied",
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}
