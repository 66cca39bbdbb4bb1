// Package purpleair fetches batched sensor telemetry from the PurpleAir
// HTTP API.
package purpleair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"airalert-service/internal/models"
)

// fetchFields is the fixed column set requested on every fetch.
var fetchFields = []string{"pm2.5_10minute", "channel_flags", "channel_state", "last_seen"}

// Client queries the sensors endpoint for a restricted set of sensor
// indices.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	loc        *time.Location
}

// New builds a Client. timezone must be an IANA zone name; the run
// timestamp returned by Fetch is expressed in it.
func New(baseURL, apiKey, timezone string) (*Client, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		loc:        loc,
	}, nil
}

// sensorsResponse is the columnar payload of GET /v1/sensors: fields
// names the columns, data holds one array per sensor with nulls for
// missing values.
type sensorsResponse struct {
	Fields []string         `json:"fields"`
	Data   [][]*json.Number `json:"data"`
}

// Fetch requests the fixed field set for the given sensor indices and
// returns the raw records plus the run timestamp, captured before the
// call in the client's timezone. Any transport, status, or decode
// problem is a fetch failure and the caller must not continue the run.
func (c *Client) Fetch(ctx context.Context, sensorIndices []int) ([]models.RawTelemetry, time.Time, error) {
	runtime := time.Now().In(c.loc)

	q := url.Values{}
	q.Set("fields", strings.Join(fetchFields, ","))
	q.Set("show_only", joinInts(sensorIndices))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sensors?"+q.Encode(), nil)
	if err != nil {
		return nil, runtime, fmt.Errorf("build sensors request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, runtime, fmt.Errorf("fetch sensors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, runtime, fmt.Errorf("sensors API returned status %d", resp.StatusCode)
	}

	var payload sensorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, runtime, fmt.Errorf("decode sensors response: %w", err)
	}

	records, err := parseRecords(payload, c.loc)
	if err != nil {
		return nil, runtime, err
	}
	return records, runtime, nil
}

// parseRecords maps the columnar response onto RawTelemetry rows by
// column name. last_seen arrives as UTC epoch seconds and is expressed
// in loc so it compares directly against the run timestamp.
func parseRecords(payload sensorsResponse, loc *time.Location) ([]models.RawTelemetry, error) {
	col := make(map[string]int, len(payload.Fields))
	for i, name := range payload.Fields {
		col[name] = i
	}
	for _, name := range append([]string{"sensor_index"}, fetchFields...) {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("malformed sensors response: missing column %q", name)
		}
	}

	records := make([]models.RawTelemetry, 0, len(payload.Data))
	for i, row := range payload.Data {
		if len(row) != len(payload.Fields) {
			return nil, fmt.Errorf("malformed sensors response: row %d has %d values, want %d", i, len(row), len(payload.Fields))
		}

		idx := row[col["sensor_index"]]
		if idx == nil {
			return nil, fmt.Errorf("malformed sensors response: row %d has null sensor_index", i)
		}
		sensorIndex, err := strconv.Atoi(idx.String())
		if err != nil {
			return nil, fmt.Errorf("malformed sensors response: row %d sensor_index: %w", i, err)
		}

		rec := models.RawTelemetry{SensorIndex: sensorIndex}
		if v := row[col["pm2.5_10minute"]]; v != nil {
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("row %d pm2.5_10minute: %w", i, err)
			}
			rec.PM25 = &f
		}
		if v := row[col["channel_flags"]]; v != nil {
			n, err := strconv.Atoi(v.String())
			if err != nil {
				return nil, fmt.Errorf("row %d channel_flags: %w", i, err)
			}
			flags := models.ChannelFlags(n)
			rec.ChannelFlags = &flags
		}
		if v := row[col["channel_state"]]; v != nil {
			n, err := strconv.Atoi(v.String())
			if err != nil {
				return nil, fmt.Errorf("row %d channel_state: %w", i, err)
			}
			state := models.ChannelState(n)
			rec.ChannelState = &state
		}
		if v := row[col["last_seen"]]; v != nil {
			sec, err := strconv.ParseInt(v.String(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d last_seen: %w", i, err)
			}
			seen := time.Unix(sec, 0).In(loc)
			rec.LastSeen = &seen
		}
		records = append(records, rec)
	}
	return records, nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
