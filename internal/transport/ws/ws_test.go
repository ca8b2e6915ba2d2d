package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"surveychat/internal/model"
)

type stubAuth struct{}

func (stubAuth) ValidateAccessToken(token string) (*model.AuthorClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &model.AuthorClaims{AuthorID: "author_admin"}, nil
}

type stubSurveys struct{}

func (stubSurveys) Get(_ context.Context, authorID, id string) (*model.Survey, error) {
	if id != "s1" || authorID != "author_admin" {
		return nil, errors.New("forbidden")
	}
	return &model.Survey{ID: id, CreatedBy: authorID}, nil
}

func TestHubDeliversToSurveySubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(nil)
	a := &Connection{SurveyID: "s1", Send: make(chan []byte, 4)}
	b := &Connection{SurveyID: "s2", Send: make(chan []byte, 4)}
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, time.Millisecond)

	hub.Publish(model.SurveyEvent{Type: model.EventResponseSubmitted, SurveyID: "s1"})

	select {
	case data := <-a.Send:
		var got model.SurveyEvent
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, model.EventResponseSubmitted, got.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, b.Send)

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 0 }, time.Second, time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)

	hub.Close()
	_, open = <-b.Send
	assert.False(t, open)
	hub.Publish(model.SurveyEvent{SurveyID: "s2"})
}

func newWSServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/surveys/{oid}", NewHandler(hub, stubAuth{}, stubSurveys{}, nil, nil).SurveyWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func TestSurveyWSRequiresTokenAndOwnership(t *testing.T) {
	_, srv := newWSServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/v1/ws/surveys/s1", nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/v1/ws/surveys/s1?token=bad", nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/v1/ws/surveys/other?token=good", nil)
	require.Error(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestSurveyWSStreamsEvents(t *testing.T) {
	hub, srv := newWSServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/surveys/s1?token=good"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, time.Millisecond)
	hub.Publish(model.SurveyEvent{Type: model.EventSurveyStatusChanged, SurveyID: "s1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.SurveyEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, model.EventSurveyStatusChanged, got.Type)
	assert.Equal(t, "s1", got.SurveyID)
}
