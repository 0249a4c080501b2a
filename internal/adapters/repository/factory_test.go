package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/metrics"
)

func snapshotsWritten() float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() == "league_tracker_snapshots_written_total" {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestOpen(t *testing.T) {
	Convey("Given the backend factory", t, func() {
		ctx := context.Background()

		Convey("An unknown backend is rejected", func() {
			_, err := Open(ctx, "sqlite")
			So(errors.Is(err, ErrUnknownBackend), ShouldBeTrue)
		})

		Convey("The gist backend needs credentials", func() {
			_, err := Open(ctx, BackendGist)
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
		})

		Convey("The redis backend needs an address", func() {
			_, err := Open(ctx, BackendRedis)
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
		})

		Convey("Without instrumentation the concrete store is returned", func() {
			st, err := Open(ctx, BackendMemory, WithInstrumentation(false))
			So(err, ShouldBeNil)
			_, ok := st.(*MemoryStore)
			So(ok, ShouldBeTrue)
		})

		Convey("The gist backend takes its cache TTL from the options", func() {
			st, err := Open(ctx, BackendGist,
				WithGist("abc123", "token", "http://127.0.0.1:1"),
				WithGistCacheTTL(time.Minute),
				WithInstrumentation(false),
			)
			So(err, ShouldBeNil)
			gs, ok := st.(*GistStore)
			So(ok, ShouldBeTrue)
			So(gs.ttl, ShouldEqual, time.Minute)
		})

		Convey("The json backend opens under the data dir", func() {
			st, err := Open(ctx, BackendJSON, WithDataDir(t.TempDir()))
			So(err, ShouldBeNil)
			So(st.Close(), ShouldBeNil)
		})

		Convey("An instrumented store counts successful writes", func() {
			st, err := Open(ctx, BackendMemory)
			So(err, ShouldBeNil)
			_, ok := st.(*instrumented)
			So(ok, ShouldBeTrue)

			before := snapshotsWritten()
			So(st.Put(ctx, snap("alice", "2024-03-01", 10, 1)), ShouldBeNil)
			So(st.Put(ctx, model.Snapshot{}), ShouldNotBeNil)
			So(snapshotsWritten(), ShouldEqual, before+1)
		})
	})
}

func TestDuckDBSchemaVersion(t *testing.T) {
	Convey("Given a new duckdb store", t, func() {
		ctx := context.Background()
		path := t.TempDir() + "/league.duckdb"
		st, err := NewDuckDBStore(ctx, path, nil)
		So(err, ShouldBeNil)

		Convey("The schema version is recorded and survives a reopen", func() {
			v, err := st.schemaVersion(ctx)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, SchemaVersion)
			So(st.Put(ctx, snap("alice", "2024-03-01", 10, 1)), ShouldBeNil)
			So(st.Close(), ShouldBeNil)

			again, err := NewDuckDBStore(ctx, path, nil)
			So(err, ShouldBeNil)
			defer func() { _ = again.Close() }()
			_, found, err := again.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
		})

		Convey("A database from a newer schema is refused at open", func() {
			_, err := st.db.ExecContext(ctx, `UPDATE metadata SET value = ? WHERE key = 'schema_version'`,
				strconv.Itoa(SchemaVersion+1))
			So(err, ShouldBeNil)
			So(st.Close(), ShouldBeNil)

			_, err = NewDuckDBStore(ctx, path, nil)
			So(errors.Is(err, ErrSchemaVersion), ShouldBeTrue)
		})
	})
}

func TestBadgerPersistence(t *testing.T) {
	Convey("Given a badger store on disk", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		st, err := NewBadgerStore(dir, nil)
		So(err, ShouldBeNil)
		So(st.Put(ctx, snap("alice", "2024-03-01", 10, 1)), ShouldBeNil)
		So(st.Close(), ShouldBeNil)

		Convey("Reopening the directory keeps the data", func() {
			again, err := NewBadgerStore(dir, nil)
			So(err, ShouldBeNil)
			defer func() { _ = again.Close() }()
			users, err := again.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldResemble, []string{"alice"})
		})
	})
}

func TestSnapshotKeys(t *testing.T) {
	Convey("Badger keys round-trip usernames and dates", t, func() {
		d := model.MustParseDate("2024-03-01")
		u, got, err := parseSnapshotKey(snapshotKey("ana.maria", d))
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "ana.maria")
		So(got, ShouldEqual, d)

		_, _, err = parseSnapshotKey([]byte("snap/garbage"))
		So(err, ShouldNotBeNil)
	})
}
