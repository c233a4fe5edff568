package cli_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/versus/internal/adapters/http/api"
	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/cli"
	"github.com/okian/versus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	ctx := context.Background()
	svc := service.New(service.WithSamplerSeed(5))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv, svc
}

func execute(args ...string) (string, error) {
	root := cli.NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedCommand(t *testing.T) {
	Convey("Given a server and a seed file", t, func() {
		srv, svc := newServer(t)
		path := filepath.Join(t.TempDir(), "seed.yaml")
		doc := "profiles:\n  - id: ada\n    name: Ada Lovelace\n    major: Mathematics\n  - id: alan\n    name: Alan Turing\n"
		So(os.WriteFile(path, []byte(doc), 0o600), ShouldBeNil)

		Convey("When the seed command runs twice", func() {
			first, err := execute("seed", "--file", path, "--url", srv.URL)
			So(err, ShouldBeNil)
			second, err := execute("seed", "--file", path, "--url", srv.URL)
			So(err, ShouldBeNil)

			Convey("Then the profiles are created once", func() {
				So(first, ShouldContainSubstring, "created 2, skipped 0")
				So(second, ShouldContainSubstring, "created 0, skipped 2")

				p, err := svc.GetProfile(context.Background(), "ada")
				So(err, ShouldBeNil)
				So(p.Major, ShouldEqual, "Mathematics")
				So(p.Rating, ShouldEqual, 1500)
			})
		})

		Convey("When the file flag is missing", func() {
			_, err := execute("seed", "--url", srv.URL)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSimulateCommand(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv, _ := newServer(t)

		Convey("When a small simulation runs", func() {
			out, err := execute("simulate",
				"--url", srv.URL,
				"--profiles", "6",
				"--voters", "3",
				"--votes", "30",
				"--concurrency", "3",
				"--seed", "9",
				"--min-correlation=-1",
			)

			Convey("Then the report is printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "profiles: created 6, reused 0")
				So(out, ShouldContainSubstring, "votes: applied 90")
				So(out, ShouldContainSubstring, "RANK")
				So(out, ShouldContainSubstring, "sim-")
			})
		})

		Convey("When the config is invalid", func() {
			_, err := execute("simulate", "--url", srv.URL, "--profiles", "1")
			So(err, ShouldNotBeNil)
		})
	})
}
