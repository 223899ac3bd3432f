package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type failing struct{ calls int }

func (f *failing) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("down")
}

func TestMultiPublishesToEveryoneAndJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	bad := &failing{}
	m := Multi{bad, nil, rec}

	err := m.Publish(context.Background(), Event{Type: VersionSigned})

	require.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, []Type{VersionSigned}, rec.Types())
}

func TestWebhookPostsEventJSON(t *testing.T) {
	var got Event
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Event-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh, err := NewWebhook(logger.Nop(), srv.URL, time.Second)
	require.NoError(t, err)

	evt := Event{Type: DraftGenerated, CompanyID: uuid.New(), VersionID: uuid.New(), VersionNumber: 3, OccurredAt: time.Now().UTC()}
	require.NoError(t, wh.Publish(context.Background(), evt))
	assert.Equal(t, string(DraftGenerated), header)
	assert.Equal(t, evt.VersionID, got.VersionID)
	assert.Equal(t, 3, got.VersionNumber)
}

func TestWebhookReportsServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh, err := NewWebhook(logger.Nop(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.Error(t, wh.Publish(context.Background(), Event{Type: VersionSigned}))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestNewWebhookRequiresURL(t *testing.T) {
	_, err := NewWebhook(logger.Nop(), " ", 0)
	assert.Error(t, err)
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	bus, err := NewRedisBus(logger.Nop(), addr, "pcmso.events.test."+uuid.NewString())
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(e Event) { got <- e })
	}()
	// Subscribe must be live before publishing; poll until delivered.
	want := Event{Type: VersionSigned, VersionID: uuid.New()}
	for {
		require.NoError(t, bus.Publish(ctx, want))
		select {
		case e := <-got:
			assert.Equal(t, want.VersionID, e.VersionID)
			return
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("event not delivered")
		}
	}
}
