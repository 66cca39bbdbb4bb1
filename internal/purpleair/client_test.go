package purpleair

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airalert-service/internal/models"
	"airalert-service/internal/quality"
)

const responseBody = `{
	"fields": ["sensor_index", "pm2.5_10minute", "channel_flags", "channel_state", "last_seen"],
	"data": [
		[1, 40.0, 0, 3, 1756300000],
		[2, null, 1, 3, 1756300000],
		[3, 12.5, 0, 0, null]
	]
}`

func TestFetch(t *testing.T) {
	var gotPath, gotKey, gotFields, gotShowOnly string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		gotFields = r.URL.Query().Get("fields")
		gotShowOnly = r.URL.Query().Get("show_only")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "test-key", "America/Chicago")
	require.NoError(t, err)

	before := time.Now()
	records, runtime, err := client.Fetch(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, "/v1/sensors", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "pm2.5_10minute,channel_flags,channel_state,last_seen", gotFields)
	assert.Equal(t, "1,2,3", gotShowOnly)

	// Runtime is captured before the call, in the configured zone.
	assert.False(t, runtime.Before(before.Add(-time.Second)))
	assert.Equal(t, "America/Chicago", runtime.Location().String())

	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0].SensorIndex)
	require.NotNil(t, records[0].PM25)
	assert.Equal(t, 40.0, *records[0].PM25)
	require.NotNil(t, records[0].ChannelFlags)
	assert.Equal(t, models.FlagsNormal, *records[0].ChannelFlags)
	require.NotNil(t, records[0].ChannelState)
	assert.Equal(t, models.StateBothOn, *records[0].ChannelState)

	// last_seen keeps the epoch instant, expressed in the client's zone.
	require.NotNil(t, records[0].LastSeen)
	assert.Equal(t, int64(1756300000), records[0].LastSeen.Unix())
	assert.Equal(t, "America/Chicago", records[0].LastSeen.Location().String())

	// Nulls stay nil.
	assert.Nil(t, records[1].PM25)
	require.NotNil(t, records[1].ChannelFlags)
	assert.Equal(t, models.FlagsADowngraded, *records[1].ChannelFlags)
	assert.Nil(t, records[2].LastSeen)
}

// A sensor that reported moments before the fetch must survive the
// staleness rule when the fetched records feed the quality filter.
func TestFetchThenPartition_FreshSensorStaysClean(t *testing.T) {
	body := fmt.Sprintf(`{
		"fields": ["sensor_index", "pm2.5_10minute", "channel_flags", "channel_state", "last_seen"],
		"data": [[1, 40.0, 0, 3, %d]]
	}`, time.Now().Unix())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "key", "America/Chicago")
	require.NoError(t, err)

	records, runtime, err := client.Fetch(context.Background(), []int{1})
	require.NoError(t, err)

	clean, flagged := quality.Partition(records, runtime)
	require.Len(t, clean, 1, "a sensor that just reported is not stale")
	assert.Empty(t, flagged)

	spikes := quality.ExtractSpikes(clean, 35)
	require.Len(t, spikes, 1)
	assert.Equal(t, 1, spikes[0].SensorIndex)
	assert.Equal(t, 40.0, spikes[0].PM25)
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "bad-key", "America/Chicago")
	require.NoError(t, err)

	_, _, err = client.Fetch(context.Background(), []int{1})
	assert.ErrorContains(t, err, "status 403")
}

func TestFetch_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing column",
			body: `{"fields": ["sensor_index", "pm2.5_10minute"], "data": []}`,
			want: "missing column",
		},
		{
			name: "ragged row",
			body: `{"fields": ["sensor_index", "pm2.5_10minute", "channel_flags", "channel_state", "last_seen"], "data": [[1, 2.0]]}`,
			want: "row 0",
		},
		{
			name: "null sensor_index",
			body: `{"fields": ["sensor_index", "pm2.5_10minute", "channel_flags", "channel_state", "last_seen"], "data": [[null, 2.0, 0, 3, 1756300000]]}`,
			want: "null sensor_index",
		},
		{
			name: "not json",
			body: `<!doctype html>`,
			want: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := New(srv.URL, "key", "America/Chicago")
			require.NoError(t, err)

			_, _, err = client.Fetch(context.Background(), []int{1})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("https://api.example.com", "key", "Mars/Olympus")
	assert.Error(t, err)
}
