package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/domain/model"
)

func TestMigrate(t *testing.T) {
	convey.Convey("Given a json store with history", t, func() {
		dir := t.TempDir()
		t.Setenv("LEAGUE_CONFIG", "")
		t.Setenv("LEAGUE_ENV_FILE", "")
		t.Setenv("LEAGUE_USERNAMES", "alice")
		t.Setenv("LEAGUE_STORAGE_BACKEND", "json")
		t.Setenv("LEAGUE_DATA_DIR", filepath.Join(dir, "json"))
		t.Setenv("LEAGUE_BADGER_DIR", filepath.Join(dir, "badger"))

		ctx := context.Background()
		src, err := repository.NewFileStore(filepath.Join(dir, "json"), nil)
		convey.So(err, convey.ShouldBeNil)
		day := model.MustParseDate("2024-03-01")
		for i := range 3 {
			convey.So(src.Put(ctx, model.Snapshot{Username: "alice", Date: day.AddDays(i), TotalXP: int64(100 * i)}), convey.ShouldBeNil)
		}
		convey.So(src.Close(), convey.ShouldBeNil)

		convey.Convey("Copying to badger reports the count and validates", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"--to", "badger"}, &out, io.Discard)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "Copied 3 snapshots from json to badger")
			convey.So(out.String(), convey.ShouldContainSubstring, "Validation passed")
		})

		convey.Convey("Validating against an empty destination fails", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"--to", "badger", "--validate-only"}, &out, io.Discard)
			convey.So(errors.Is(err, repository.ErrValidation), convey.ShouldBeTrue)
			convey.So(out.String(), convey.ShouldContainSubstring, "3 missing")
		})

		convey.Convey("A destination is required", func() {
			convey.So(run(ctx, nil, io.Discard, io.Discard), convey.ShouldNotBeNil)
			convey.So(run(ctx, []string{"--to", "json"}, io.Discard, io.Discard), convey.ShouldNotBeNil)
		})
	})
}
