package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/domain/model"
)

func testConfig() Config {
	return Config{
		Server:     "smtp.example.com",
		Port:       587,
		Sender:     "league@example.com",
		Password:   "pw",
		Recipients: []string{"mum@example.com", "dad@example.com"},
	}
}

func TestSubject(t *testing.T) {
	Convey("The subject carries the prefix and the long date", t, func() {
		m := Message{SubjectPrefix: "Weekly Report - ", Date: model.MustParseDate("2024-03-09")}
		So(m.Subject(), ShouldEqual, "Family League - Weekly Report - March 09, 2024")
	})
}

func TestMailerSend(t *testing.T) {
	Convey("Given a configured mailer with a capturing transport", t, func() {
		var (
			raw   []byte
			calls int
		)
		m := NewMailer(testConfig(), nil)
		m.now = func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC) }
		m.send = func(_ context.Context, _ Config, b []byte) error {
			calls++
			raw = b
			return nil
		}

		err := m.Send(context.Background(), Message{
			SubjectPrefix: "Daily Update - ",
			Date:          model.MustParseDate("2024-03-09"),
			Text:          "🥇 Alice: 9 day streak",
			HTML:          "<p>🥇 Alice</p>",
		})

		Convey("Then one message with both alternatives is sent to every recipient", func() {
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 1)

			msg, perr := mail.ReadMessage(bytes.NewReader(raw))
			So(perr, ShouldBeNil)
			So(msg.Header.Get("To"), ShouldEqual, "mum@example.com, dad@example.com")
			subject, derr := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
			So(derr, ShouldBeNil)
			So(subject, ShouldEqual, "Family League - Daily Update - March 09, 2024")

			mediaType, params, merr := mime.ParseMediaType(msg.Header.Get("Content-Type"))
			So(merr, ShouldBeNil)
			So(mediaType, ShouldEqual, "multipart/alternative")

			mr := multipart.NewReader(msg.Body, params["boundary"])
			var types, bodies []string
			for {
				p, nerr := mr.NextPart()
				if errors.Is(nerr, io.EOF) {
					break
				}
				So(nerr, ShouldBeNil)
				b, _ := io.ReadAll(p) // quoted-printable is decoded by NextPart
				types = append(types, p.Header.Get("Content-Type"))
				bodies = append(bodies, string(b))
			}
			So(types, ShouldResemble, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"})
			So(bodies[0], ShouldEqual, "🥇 Alice: 9 day streak")
			So(bodies[1], ShouldEqual, "<p>🥇 Alice</p>")
		})
	})

	Convey("Given a transport failure", t, func() {
		m := NewMailer(testConfig(), nil)
		boom := errors.New("connection refused")
		m.send = func(context.Context, Config, []byte) error { return boom }

		err := m.Send(context.Background(), Message{Date: model.MustParseDate("2024-03-09"), Text: "x"})
		So(errors.Is(err, ErrSend), ShouldBeTrue)
		So(errors.Is(err, boom), ShouldBeTrue)
	})

	Convey("Given incomplete settings", t, func() {
		cfg := testConfig()
		cfg.Password = ""
		m := NewMailer(cfg, nil)
		m.send = func(context.Context, Config, []byte) error {
			t.Fatal("transport must not be called")
			return nil
		}

		err := m.Send(context.Background(), Message{Date: model.MustParseDate("2024-03-09"), Text: "x"})
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
		So(cfg.Complete(), ShouldBeFalse)
	})
}
