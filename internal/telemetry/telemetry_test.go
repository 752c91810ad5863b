package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClientSync(t *testing.T) {
	Convey("Given a server streaming two events over Upgrade/Sync", t, func() {
		events := make(chan Event, 4)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, err := Upgrade(w, r, events)
			if err != nil {
				t.Errorf("upgrade: %v", err)
				return
			}
			client.Sync()
		}))
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("published events arrive as JSON on the peer", func() {
			// publish() throttles to at most one send per pubResolution from
			// the moment Sync starts; wait it out so this first event isn't
			// silently dropped by that window.
			time.Sleep(pubResolution + 50*time.Millisecond)
			events <- Event{Iteration: 1, Phase: "bracket", Lambda: 2.0, RootValue: 1.0}

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var got Event
			err := conn.ReadJSON(&got)
			So(err, ShouldBeNil)
			So(got.Iteration, ShouldEqual, 1)
			So(got.Phase, ShouldEqual, "bracket")

			close(events)
		})
	})
}
