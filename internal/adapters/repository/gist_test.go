package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/domain/model"
)

// fakeGist serves a single gist document in memory.
type fakeGist struct {
	mu        sync.Mutex
	files     map[string]string
	truncate  bool
	failPatch bool
	failGet   bool
	gets      int
	patches   int
	lastAuth  string
}

func newFakeGist() *fakeGist {
	return &fakeGist{files: make(map[string]string)}
}

func (f *fakeGist) with(fn func(f *fakeGist)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGist) history() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[HistoryFileName]
}

func (f *fakeGist) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")

	if strings.HasPrefix(r.URL.Path, "/raw/") {
		_, _ = io.WriteString(w, f.files[strings.TrimPrefix(r.URL.Path, "/raw/")])
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/gists/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.gets++
		if f.failGet {
			http.Error(w, `{"message":"boom"}`, http.StatusBadGateway)
			return
		}
		doc := gistDoc{Files: make(map[string]*gistFile)}
		for name, content := range f.files {
			file := &gistFile{Content: content}
			if f.truncate {
				file.Content = content[:len(content)/2]
				file.Truncated = true
				file.RawURL = "http://" + r.Host + "/raw/" + name
			}
			doc.Files[name] = file
		}
		_ = json.NewEncoder(w).Encode(doc)
	case http.MethodPatch:
		f.patches++
		if f.failPatch {
			http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		var doc gistDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for name, file := range doc.Files {
			f.files[name] = file.Content
		}
		_, _ = io.WriteString(w, `{}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestGistStore(t *testing.T) {
	Convey("Given a gist store backed by a fake gist API", t, func() {
		ctx := context.Background()
		fake := newFakeGist()
		srv := httptest.NewServer(fake)
		Reset(srv.Close)

		st, err := NewGistStore("abc123", "secret", srv.URL, srv.Client(), nil)
		So(err, ShouldBeNil)

		Convey("Writes are pushed as league_history.json with the bearer token", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			fake.with(func(f *fakeGist) { So(f.lastAuth, ShouldEqual, "Bearer secret") })
			So(fake.history(), ShouldContainSubstring, `"2024-03-01"`)

			var entries []historyEntry
			So(json.Unmarshal([]byte(fake.history()), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Results, ShouldContainKey, "alice")
		})

		Convey("A failed PATCH leaves the cached state unchanged", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			fake.with(func(f *fakeGist) { f.failPatch = true })

			err := st.Put(ctx, snap("alice", "2024-03-02", 200, 2))
			So(errors.Is(err, ErrStorageWrite), ShouldBeTrue)
			var status *HTTPStatusError
			So(errors.As(err, &status), ShouldBeTrue)
			So(status.Code, ShouldEqual, http.StatusServiceUnavailable)

			_, found, err := st.Get(ctx, "alice", model.MustParseDate("2024-03-02"))
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("A second store sees data written by the first", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			other, err := NewGistStore("abc123", "secret", srv.URL, srv.Client(), nil)
			So(err, ShouldBeNil)
			got, found, err := other.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(got.TotalXP, ShouldEqual, 100)
		})

		Convey("Truncated content is fetched from the raw URL", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			fake.with(func(f *fakeGist) { f.truncate = true })
			other, err := NewGistStore("abc123", "secret", srv.URL, srv.Client(), nil)
			So(err, ShouldBeNil)
			_, found, err := other.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
		})

		Convey("A corrupt document is a read error", func() {
			fake.with(func(f *fakeGist) { f.files[HistoryFileName] = "{not json" })
			_, err := st.ListUsers(ctx)
			So(errors.Is(err, ErrStorageRead), ShouldBeTrue)
		})

		Convey("An unreachable gist is a read error", func() {
			fake.with(func(f *fakeGist) { f.failGet = true })
			_, _, err := st.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(errors.Is(err, ErrStorageRead), ShouldBeTrue)
		})

		Convey("Refresh refetches the document", func() {
			_, err := st.ListUsers(ctx)
			So(err, ShouldBeNil)
			st.Refresh()
			_, err = st.ListUsers(ctx)
			So(err, ShouldBeNil)
			fake.with(func(f *fakeGist) { So(f.gets, ShouldEqual, 2) })
		})

		Convey("With a cache TTL, writes from another process show up once it expires", func() {
			clock := time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC)
			st.now = func() time.Time { return clock }
			st.SetCacheTTL(time.Minute)
			users, err := st.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldBeEmpty)

			cron, err := NewGistStore("abc123", "secret", srv.URL, srv.Client(), nil)
			So(err, ShouldBeNil)
			So(cron.Put(ctx, snap("alice", "2024-03-02", 100, 1)), ShouldBeNil)

			clock = clock.Add(30 * time.Second)
			users, err = st.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldBeEmpty)

			clock = clock.Add(time.Minute)
			users, err = st.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldResemble, []string{"alice"})
		})

		Convey("A closed store refuses reads and writes", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			So(st.Close(), ShouldBeNil)

			_, _, err := st.Get(ctx, "alice", model.MustParseDate("2024-03-01"))
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			So(errors.Is(err, ErrStorageRead), ShouldBeTrue)
			_, err = st.ListUsers(ctx)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			err = st.Put(ctx, snap("alice", "2024-03-02", 200, 2))
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			So(errors.Is(err, ErrStorageWrite), ShouldBeTrue)
		})

		Convey("Prune with nothing to remove does not write", func() {
			So(st.Put(ctx, snap("alice", "2024-03-01", 100, 1)), ShouldBeNil)
			n, err := st.Prune(ctx, 30)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			fake.with(func(f *fakeGist) { So(f.patches, ShouldEqual, 1) })
		})
	})

	Convey("Given missing credentials", t, func() {
		_, err := NewGistStore("", "", "", nil, nil)
		So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
	})
}
