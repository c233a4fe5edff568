package enrich

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/okian/versus/internal/domain/model"
)

type personResponse struct {
	FullName   string       `json:"fullName"`
	Location   string       `json:"location"`
	Headline   string       `json:"headline"`
	Experience []experience `json:"experienceList"`
}

type experience struct {
	Title     string      `json:"title"`
	Company   companyName `json:"company"`
	IsCurrent bool        `json:"isCurrent"`
	EndDate   string      `json:"endDate"`
}

// companyName accepts either a plain string or an object with a name.
type companyName string

func (c *companyName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = companyName(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = companyName(obj.Name)
	return nil
}

// attributes picks the current position, falling back to the one that
// ended most recently. Dates are ISO-8601, so they sort as strings.
func (p personResponse) attributes() model.Attributes {
	attrs := model.Attributes{
		Name:     strings.TrimSpace(p.FullName),
		Location: strings.TrimSpace(p.Location),
	}
	exps := append([]experience(nil), p.Experience...)
	sort.SliceStable(exps, func(i, j int) bool {
		if exps[i].IsCurrent != exps[j].IsCurrent {
			return exps[i].IsCurrent
		}
		return exps[i].EndDate > exps[j].EndDate
	})
	if len(exps) > 0 {
		attrs.Title = strings.TrimSpace(exps[0].Title)
		attrs.Company = strings.TrimSpace(string(exps[0].Company))
	}
	if attrs.Title == "" {
		attrs.Title = strings.TrimSpace(p.Headline)
	}
	return attrs
}
