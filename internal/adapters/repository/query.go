package repository

import (
	"sort"
	"strings"

	"github.com/okian/versus/internal/domain/model"
)

// majorAliases maps short filter names to the majors they stand for.
var majorAliases = map[string]string{
	"cs": "computer science",
}

func matchesQuery(p model.Profile, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Title, p.Company, p.Major} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func matchesFilter(p model.Profile, filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	switch filter {
	case "", FilterAll:
		return true
	case FilterStudents:
		return p.IsStudent
	case FilterAlumni:
		return !p.IsStudent
	}
	if major, ok := majorAliases[filter]; ok {
		filter = major
	}
	return strings.EqualFold(p.Major, filter)
}

func sortProfiles(ps []model.Profile, order string) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		switch order {
		case SortName:
			if !strings.EqualFold(a.Name, b.Name) {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
		case SortGraduation:
			if a.GraduationYear != b.GraduationYear {
				return a.GraduationYear < b.GraduationYear
			}
		default:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.ID < b.ID
	})
}

// paginate slices an already filtered and sorted listing.
func paginate(ps []model.Profile, q ListQuery) Page {
	total := len(ps)
	start, _ := q.offset(total)
	end := total
	if q.Limit < total-start {
		end = start + q.Limit
	}
	return Page{
		Profiles:   append([]model.Profile(nil), ps[start:end]...),
		Total:      total,
		Page:       q.Page,
		TotalPages: totalPages(total, q.Limit),
	}
}

func validateProfile(p model.Profile) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProfile
	}
	return nil
}
