package repository

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/domain/model"
)

func snap(user, date string, total int64, streak int, langs ...model.LanguageProgress) model.Snapshot {
	return model.Snapshot{
		Username:   user,
		Date:       model.MustParseDate(date),
		TotalXP:    total,
		StreakDays: streak,
		Languages:  langs,
	}
}

func lang(name string, level int, xp int64) model.LanguageProgress {
	return model.LanguageProgress{Name: name, Level: level, XP: xp}
}

type storeFactory func(t *testing.T) Store

func backends(t *testing.T) map[string]storeFactory {
	t.Helper()
	out := map[string]storeFactory{
		BackendMemory: func(*testing.T) Store { return NewMemoryStore() },
		BackendJSON: func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir(), nil)
			if err != nil {
				t.Fatalf("open json store: %v", err)
			}
			return s
		},
		BackendDuckDB: func(t *testing.T) Store {
			s, err := NewDuckDBStore(context.Background(), t.TempDir()+"/league.duckdb", nil)
			if err != nil {
				t.Fatalf("open duckdb store: %v", err)
			}
			return s
		},
		BackendBadger: func(*testing.T) Store {
			s, err := NewBadgerStore("", nil)
			if err != nil {
				t.Fatalf("open badger store: %v", err)
			}
			return s
		},
		BackendGist: func(t *testing.T) Store {
			fake := newFakeGist()
			srv := httptest.NewServer(fake)
			t.Cleanup(srv.Close)
			s, err := NewGistStore("abc123", "token", srv.URL, srv.Client(), nil)
			if err != nil {
				t.Fatalf("open gist store: %v", err)
			}
			return s
		},
	}
	if addr := os.Getenv("LEAGUE_TEST_REDIS_ADDR"); addr != "" {
		out[BackendRedis] = func(t *testing.T) Store {
			client := redis.NewClient(&redis.Options{Addr: addr})
			prefix := "league-test:" + t.Name() + ":"
			t.Cleanup(func() {
				ctx := context.Background()
				keys, _ := client.Keys(ctx, prefix+"*").Result()
				if len(keys) > 0 {
					_ = client.Del(ctx, keys...).Err()
				}
				_ = client.Close()
			})
			s, err := NewRedisStore(context.Background(), client, prefix, nil)
			if err != nil {
				t.Fatalf("open redis store: %v", err)
			}
			return s
		}
	}
	return out
}

func TestStoreConformance(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			runConformance(t, factory)
		})
	}
}

func runConformance(t *testing.T, factory storeFactory) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		st := factory(t)
		Reset(func() { _ = st.Close() })

		Convey("Get on a missing key reports not found without error", func() {
			_, found, err := st.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("ListUsers and GetRange are empty", func() {
			users, err := st.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldBeEmpty)
			got, err := st.GetRange(ctx, "alice", model.MinDate, model.MaxDate)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("Prune on an empty store removes nothing", func() {
			n, err := st.Prune(ctx, 7)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("When a snapshot is written", func() {
			s := snap("alice", "2024-03-01", 1200, 4, lang("Spanish", 3, 900), lang("French", 1, 300))
			s.DisplayName = "Alice"
			s.Languages[0].FromLanguage = "en"
			s.Languages[0].LearningLanguage = "es"
			So(st.Put(ctx, s), ShouldBeNil)

			Convey("Then Get returns an equal snapshot", func() {
				got, found, err := st.Get(ctx, "alice", s.Date)
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(got.Equal(s), ShouldBeTrue)
				So(got.Languages[0].Name, ShouldEqual, "Spanish")
				So(got.Languages[1].Name, ShouldEqual, "French")
			})

			Convey("Then a second write for the same key overwrites it", func() {
				s2 := snap("alice", "2024-03-01", 1300, 5, lang("Spanish", 3, 1000))
				So(st.Put(ctx, s2), ShouldBeNil)
				got, found, err := st.Get(ctx, "alice", s.Date)
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(got.Equal(s2), ShouldBeTrue)

				all, err := st.GetRange(ctx, "alice", model.MinDate, model.MaxDate)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
			})

			Convey("Then the user is listed once", func() {
				users, err := st.ListUsers(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldResemble, []string{"alice"})
			})
		})

		Convey("When an invalid snapshot is written", func() {
			err := st.Put(ctx, snap("", "2024-03-01", 10, 0))

			Convey("Then it fails as an invalid write and stores nothing", func() {
				So(errors.Is(err, model.ErrInvalidSnapshot), ShouldBeTrue)
				So(errors.Is(err, ErrStorageWrite), ShouldBeTrue)
				users, lerr := st.ListUsers(ctx)
				So(lerr, ShouldBeNil)
				So(users, ShouldBeEmpty)
			})
		})

		Convey("Snapshots on the first and last storable day round-trip", func() {
			first := snap("alice", model.MinDate.String(), 1, 1)
			last := snap("alice", model.MaxDate.String(), 2, 2)
			So(st.Put(ctx, first), ShouldBeNil)
			So(st.Put(ctx, last), ShouldBeNil)
			all, err := st.GetRange(ctx, "alice", model.MinDate, model.MaxDate)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
			So(all[0].Equal(first), ShouldBeTrue)
			So(all[1].Equal(last), ShouldBeTrue)
		})

		Convey("A username holding the key separator is rejected", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 10, 1)), ShouldBeNil)
			err := st.Put(ctx, snap("alice\x00x", "2024-03-01", 99, 1))
			So(errors.Is(err, model.ErrInvalidSnapshot), ShouldBeTrue)

			got, err := st.GetRange(ctx, "alice", model.MinDate, model.MaxDate)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].TotalXP, ShouldEqual, 10)
		})

		Convey("Given snapshots for several users with gaps", func() {
			for _, s := range []model.Snapshot{
				snap("bob", "2024-03-05", 500, 2),
				snap("alice", "2024-03-03", 300, 3),
				snap("alice", "2024-03-01", 100, 1),
				snap("alice", "2024-03-02", 200, 2),
				snap("alice", "2024-03-06", 600, 1),
				snap("carol", "2024-02-20", 50, 0),
			} {
				So(st.Put(ctx, s), ShouldBeNil)
			}

			Convey("GetRange is inclusive, ascending and skips gaps", func() {
				got, err := st.GetRange(ctx, "alice", model.MustParseDate("2024-03-02"), model.MustParseDate("2024-03-06"))
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(got[0].Date.String(), ShouldEqual, "2024-03-02")
				So(got[1].Date.String(), ShouldEqual, "2024-03-03")
				So(got[2].Date.String(), ShouldEqual, "2024-03-06")
			})

			Convey("GetRange outside the stored dates is empty", func() {
				got, err := st.GetRange(ctx, "alice", model.MustParseDate("2024-04-01"), model.MustParseDate("2024-04-30"))
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})

			Convey("ListUsers is sorted and unique", func() {
				users, err := st.ListUsers(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldResemble, []string{"alice", "bob", "carol"})
			})

			Convey("Prune keeps exactly the retained days ending at the newest date", func() {
				n, err := st.Prune(ctx, 5)
				So(err, ShouldBeNil)
				// newest is 2024-03-06, cutoff 2024-03-02
				So(n, ShouldEqual, 2)

				got, err := st.GetRange(ctx, "alice", model.MinDate, model.MaxDate)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(got[0].Date.String(), ShouldEqual, "2024-03-02")

				users, err := st.ListUsers(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldResemble, []string{"alice", "bob"})

				Convey("And pruning again is a no-op", func() {
					n, err := st.Prune(ctx, 5)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 0)
				})
			})

			Convey("Prune with a non-positive retention is a no-op", func() {
				n, err := st.Prune(ctx, 0)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				users, err := st.ListUsers(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldHaveLength, 3)
			})
		})
	})
}
