package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/versus/internal/domain/model"
)

// forEachStore runs fn against a fresh instance of every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	factories := map[string]func(t *testing.T) Store{
		"treap": func(t *testing.T) Store {
			return NewTreapStore(context.Background(), WithSeed(1))
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLStore(context.Background(), ":memory:", WithSeed(1))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		},
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() {
				if err := store.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}()
			fn(t, store)
		})
	}
}

func seedProfiles(t *testing.T, store Store, profiles ...model.Profile) {
	t.Helper()
	for _, p := range profiles {
		if p.Rating == 0 {
			p.Rating = model.DefaultRating
		}
		if _, err := store.Insert(context.Background(), p); err != nil {
			t.Fatalf("insert %s: %v", p.ID, err)
		}
	}
}

// fixedDelta moves the left side up by delta and the right side down.
func fixedDelta(delta float64) RateFunc {
	return func(left, right float64) (float64, float64, error) {
		return left + delta, right - delta, nil
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if count := store.Count(ctx); count != 0 {
			t.Errorf("expected count 0, got %d", count)
		}

		p, err := store.Insert(ctx, model.Profile{ID: "ada", Name: "Ada Lovelace", Major: "Mathematics", GraduationYear: 2019, Rating: 1620})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Rating != 1620 {
			t.Errorf("expected rating 1620, got %v", p.Rating)
		}

		got, err := store.Get(ctx, "ada")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "Ada Lovelace" || got.Major != "Mathematics" || got.GraduationYear != 2019 {
			t.Errorf("unexpected profile %+v", got)
		}

		if _, err := store.Insert(ctx, model.Profile{ID: "ada", Name: "Again"}); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		if _, err := store.Insert(ctx, model.Profile{ID: "nameless"}); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("expected ErrInvalidProfile, got %v", err)
		}
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if count := store.Count(ctx); count != 1 {
			t.Errorf("expected count 1, got %d", count)
		}
	})
}

func TestStore_InsertKeepsRating(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, r := range []float64{0, -42.5} {
			id := fmt.Sprintf("p%v", r)
			p, err := store.Insert(ctx, model.Profile{ID: id, Name: id, Rating: r})
			if err != nil {
				t.Fatalf("insert %s: %v", id, err)
			}
			if p.Rating != r {
				t.Errorf("insert returned rating %v, want %v", p.Rating, r)
			}
			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("get %s: %v", id, err)
			}
			if got.Rating != r {
				t.Errorf("stored rating %v, want %v", got.Rating, r)
			}
		}
	})
}

func TestStore_InsertVote(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store,
			model.Profile{ID: "a", Name: "A"},
			model.Profile{ID: "b", Name: "B"},
		)

		vote := model.Vote{ID: "v1", SessionID: "s1", LeftID: "a", RightID: "b", Outcome: model.LeftWins}
		if seen, err := store.HasVote(ctx, "v1"); err != nil || seen {
			t.Fatalf("expected no vote v1 yet, got %v, %v", seen, err)
		}
		applied, err := store.InsertVote(ctx, vote, fixedDelta(16))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen, err := store.HasVote(ctx, "v1"); err != nil || !seen {
			t.Errorf("expected vote v1 to be recorded, got %v, %v", seen, err)
		}
		if applied.Left.Before != 1500 || applied.Left.After != 1516 {
			t.Errorf("unexpected left change %+v", applied.Left)
		}
		if applied.Right.Delta() != -16 {
			t.Errorf("unexpected right delta %v", applied.Right.Delta())
		}

		a, _ := store.Get(ctx, "a")
		b, _ := store.Get(ctx, "b")
		if a.Rating != 1516 || b.Rating != 1484 {
			t.Errorf("ratings not persisted: a=%v b=%v", a.Rating, b.Rating)
		}

		if _, err := store.InsertVote(ctx, vote, fixedDelta(16)); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate for a replayed vote id, got %v", err)
		}
		a, _ = store.Get(ctx, "a")
		if a.Rating != 1516 {
			t.Errorf("replayed vote changed rating to %v", a.Rating)
		}
	})
}

func TestStore_InsertVoteFailures(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store, model.Profile{ID: "a", Name: "A"}, model.Profile{ID: "b", Name: "B"})

		_, err := store.InsertVote(ctx, model.Vote{LeftID: "a", RightID: "ghost", Outcome: model.Draw}, fixedDelta(1))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		_, err = store.InsertVote(ctx, model.Vote{LeftID: "a", RightID: "a", Outcome: model.Draw}, fixedDelta(1))
		if !errors.Is(err, model.ErrInvalidVote) {
			t.Errorf("expected ErrInvalidVote, got %v", err)
		}

		boom := errors.New("boom")
		_, err = store.InsertVote(ctx, model.Vote{SessionID: "s", LeftID: "a", RightID: "b", Outcome: model.Draw},
			func(float64, float64) (float64, float64, error) { return 0, 0, boom })
		if !errors.Is(err, boom) {
			t.Errorf("expected rate error, got %v", err)
		}

		a, _ := store.Get(ctx, "a")
		if a.Rating != model.DefaultRating {
			t.Errorf("failed vote changed rating to %v", a.Rating)
		}
		votes, err := store.RecentVotes(ctx, "s", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(votes) != 0 {
			t.Errorf("failed vote was recorded: %+v", votes)
		}
	})
}

func TestStore_RecentVotes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store,
			model.Profile{ID: "a", Name: "A"},
			model.Profile{ID: "b", Name: "B"},
			model.Profile{ID: "c", Name: "C"},
		)
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		pairs := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"a", "c"}}
		for i, p := range pairs {
			v := model.Vote{
				ID: fmt.Sprintf("v%d", i), SessionID: "s1", LeftID: p[0], RightID: p[1],
				Outcome: model.RightWins, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if _, err := store.InsertVote(ctx, v, fixedDelta(-1)); err != nil {
				t.Fatalf("vote %d: %v", i, err)
			}
		}
		if _, err := store.InsertVote(ctx, model.Vote{ID: "other", SessionID: "s2", LeftID: "a", RightID: "b", Outcome: model.Draw}, fixedDelta(0)); err != nil {
			t.Fatalf("other session vote: %v", err)
		}

		votes, err := store.RecentVotes(ctx, "s1", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(votes) != 3 {
			t.Fatalf("expected 3 votes, got %d", len(votes))
		}
		for i, want := range []string{"v3", "v2", "v1"} {
			if votes[i].Vote.ID != want {
				t.Errorf("position %d: expected %s, got %s", i, want, votes[i].Vote.ID)
			}
		}
		if votes[0].Vote.Outcome != model.RightWins || !votes[0].Vote.CreatedAt.Equal(base.Add(3*time.Minute)) {
			t.Errorf("vote fields not round-tripped: %+v", votes[0].Vote)
		}
		if votes[0].Left.ProfileID != "a" || votes[0].Right.ProfileID != "c" {
			t.Errorf("rating changes not attributed: %+v", votes[0])
		}

		if _, err := store.RecentVotes(ctx, "s1", 0); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
	})
}

func TestStore_RandomSample(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			seedProfiles(t, store, model.Profile{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("P%d", i)})
		}

		all, err := store.RandomSample(ctx, nil, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 10 {
			t.Errorf("expected all 10 profiles, got %d", len(all))
		}

		for i := 0; i < 20; i++ {
			sample, err := store.RandomSample(ctx, []string{"p0", "p1", "p2"}, 4)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sample) != 4 {
				t.Fatalf("expected 4 profiles, got %d", len(sample))
			}
			seen := map[string]bool{}
			for _, p := range sample {
				if p.ID == "p0" || p.ID == "p1" || p.ID == "p2" {
					t.Errorf("excluded profile %s sampled", p.ID)
				}
				if seen[p.ID] {
					t.Errorf("profile %s sampled twice", p.ID)
				}
				seen[p.ID] = true
			}
		}

		few, err := store.RandomSample(ctx, []string{"p0"}, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(few) != 9 {
			t.Errorf("expected 9 eligible profiles, got %d", len(few))
		}
	})
}

func TestStore_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store,
			model.Profile{ID: "1", Name: "Zed", Title: "Engineer", Company: "Acme", Major: "Computer Science", GraduationYear: 2026, IsStudent: true, Rating: 1600},
			model.Profile{ID: "2", Name: "amy", Title: "Designer", Company: "Globex", Major: "Industrial Design", GraduationYear: 2018, Rating: 1400},
			model.Profile{ID: "3", Name: "Bob", Title: "Founder", Company: "Initech", Major: "Computer Science", GraduationYear: 2020, Rating: 1550},
			model.Profile{ID: "4", Name: "Cy", Title: "Student", Company: "", Major: "Physics", GraduationYear: 2027, IsStudent: true, Rating: 1500},
		)

		page, err := store.List(ctx, ListQuery{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Total != 4 || page.TotalPages != 1 || page.Page != 1 {
			t.Errorf("unexpected paging %+v", page)
		}
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[1 3 4 2]" {
			t.Errorf("expected rating order, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Sort: SortName})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[2 3 4 1]" {
			t.Errorf("expected name order, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Sort: SortGraduation})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[2 3 1 4]" {
			t.Errorf("expected graduation order, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Filter: FilterStudents})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[1 4]" {
			t.Errorf("expected students, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Filter: FilterAlumni})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[3 2]" {
			t.Errorf("expected alumni, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Filter: "cs"})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[1 3]" {
			t.Errorf("expected computer science majors, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Query: "GLOB"})
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[2]" {
			t.Errorf("expected company match, got %v", got)
		}

		page, _ = store.List(ctx, ListQuery{Limit: 3, Page: 2})
		if page.Total != 4 || page.TotalPages != 2 || len(page.Profiles) != 1 || page.Profiles[0].ID != "2" {
			t.Errorf("unexpected second page %+v", page)
		}

		page, _ = store.List(ctx, ListQuery{Limit: 3, Page: 9})
		if len(page.Profiles) != 0 || page.Total != 4 {
			t.Errorf("expected empty page past the end, got %+v", page)
		}
	})
}

func TestStore_ListHugePage(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store,
			model.Profile{ID: "1", Name: "Ann", Rating: 1600},
			model.Profile{ID: "2", Name: "Ben", Rating: 1500},
		)

		for _, pageNo := range []int{3, 1e17, math.MaxInt} {
			page, err := store.List(ctx, ListQuery{Page: pageNo, Limit: 100})
			if err != nil {
				t.Fatalf("page %d: unexpected error: %v", pageNo, err)
			}
			if len(page.Profiles) != 0 {
				t.Errorf("page %d: expected no profiles, got %v", pageNo, profileIDs(page.Profiles))
			}
			if page.Page != pageNo || page.Total != 2 || page.TotalPages != 1 {
				t.Errorf("page %d: unexpected paging %+v", pageNo, page)
			}
		}

		page, err := store.List(ctx, ListQuery{Page: 1, Limit: math.MaxInt})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := profileIDs(page.Profiles); fmt.Sprint(got) != "[1 2]" {
			t.Errorf("expected every profile on a huge first page, got %v", got)
		}
	})
}

func TestStore_Enrich(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store, model.Profile{ID: "a", Name: "A", LinkedInURL: "https://linkedin.com/in/a"}, model.Profile{ID: "b", Name: "B"})
		if _, err := store.InsertVote(ctx, model.Vote{LeftID: "a", RightID: "b", Outcome: model.LeftWins}, fixedDelta(16)); err != nil {
			t.Fatalf("vote: %v", err)
		}

		p, err := store.Enrich(ctx, "a", model.Attributes{Title: "CTO", Company: "Acme", Location: "Atlanta"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !p.Enriched || p.Title != "CTO" || p.Sparse() {
			t.Errorf("unexpected enriched profile %+v", p)
		}

		got, _ := store.Get(ctx, "a")
		if got.Rating != 1516 {
			t.Errorf("enrichment changed rating to %v", got.Rating)
		}
		if got.Company != "Acme" || !got.Enriched {
			t.Errorf("enrichment not persisted: %+v", got)
		}

		if _, err := store.Enrich(ctx, "ghost", model.Attributes{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_TopNAndRank(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		seedProfiles(t, store,
			model.Profile{ID: "a", Name: "A", Rating: 1600},
			model.Profile{ID: "b", Name: "B", Rating: 1550},
			model.Profile{ID: "c", Name: "C", Rating: 1550},
			model.Profile{ID: "d", Name: "D", Rating: 1400},
		)

		top, err := store.TopN(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []struct {
			id   string
			rank int
		}{{"a", 1}, {"b", 2}, {"c", 2}, {"d", 4}}
		if len(top) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(top))
		}
		for i, w := range want {
			if top[i].ProfileID != w.id || top[i].Rank != w.rank {
				t.Errorf("position %d: expected %s rank %d, got %+v", i, w.id, w.rank, top[i])
			}
		}
		if top[0].Name != "A" {
			t.Errorf("expected names on entries, got %+v", top[0])
		}

		top, _ = store.TopN(ctx, 2)
		if len(top) != 2 || top[1].ProfileID != "b" {
			t.Errorf("unexpected truncated leaderboard %+v", top)
		}

		entry, err := store.Rank(ctx, "c")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Rank != 2 || entry.Rating != 1550 {
			t.Errorf("unexpected rank entry %+v", entry)
		}
		entry, _ = store.Rank(ctx, "d")
		if entry.Rank != 4 {
			t.Errorf("expected rank 4, got %d", entry.Rank)
		}

		if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
		if _, err := store.Rank(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func profileIDs(ps []model.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
