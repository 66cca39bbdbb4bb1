// Package pipeline orchestrates one polling cycle: fetch telemetry,
// filter quality, extract spikes, resolve nearby subscribers, drive the
// per-user alert lifecycle, and dispatch messages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"airalert-service/internal/logging"
	"airalert-service/internal/models"
	"airalert-service/internal/quality"
	"airalert-service/internal/utils"
)

// Store is the persistence surface the pipeline drives.
type Store interface {
	ListSensorIndices(ctx context.Context) ([]int, error)
	UsersNearbySensor(ctx context.Context, sensorIndex int, distanceMeters float64) ([]int, error)
	UsersEligibleForNewAlert(ctx context.Context, candidateIDs []int) ([]int, error)
	CreateAlert(ctx context.Context, startTime time.Time, maxReading float64, sensorIndices []int) (int, error)
	AppendActiveAlert(ctx context.Context, recordIDs []int, alertIndex int) error
	ExtendActiveAlerts(ctx context.Context, recordIDs []int, sensorIndex int, reading float64) error
	UsersReportable(ctx context.Context) ([]int, error)
	InitializeReport(ctx context.Context, recordID int, reportID string, now time.Time) (int, float64, error)
}

// Fetcher pulls raw telemetry for a batch of sensors and reports the
// run timestamp captured before the call.
type Fetcher interface {
	Fetch(ctx context.Context, sensorIndices []int) ([]models.RawTelemetry, time.Time, error)
}

// Dispatcher sends one message body per record id.
type Dispatcher interface {
	Dispatch(ctx context.Context, recordIDs []int, messages []string) error
}

// EventSink receives pipeline events for live observers. May be nil.
type EventSink interface {
	Publish(event models.PipelineEvent)
}

// Config carries the tunables of a pipeline run.
type Config struct {
	SpikeThreshold float64
	RadiusMeters   float64
	FetchAttempts  int
	FetchRetryWait time.Duration
}

// Pipeline runs the spike-detection and alert-lifecycle cycle.
type Pipeline struct {
	store       Store
	fetcher     Fetcher
	dispatcher  Dispatcher
	events      EventSink
	cfg         Config
	logger      *logging.Logger
	trigger     chan struct{}
	newReportID func() string
}

// New constructs a Pipeline. events may be nil.
func New(store Store, fetcher Fetcher, dispatcher Dispatcher, events EventSink, cfg Config, logger *logging.Logger) *Pipeline {
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.FetchRetryWait <= 0 {
		cfg.FetchRetryWait = 10 * time.Second
	}
	return &Pipeline{
		store:       store,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		events:      events,
		cfg:         cfg,
		logger:      logger,
		trigger:     make(chan struct{}, 1),
		newReportID: uuid.NewString,
	}
}

// Start runs the pipeline on the given interval until ctx is cancelled.
// The first run happens immediately. Runs never overlap: triggers and
// ticks arriving mid-run coalesce into at most one pending run.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Infof("Pipeline stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.trigger:
			p.runOnce(ctx)
		}
	}
}

// TriggerRun requests an immediate run. Non-blocking; a run already
// pending absorbs the request.
func (p *Pipeline) TriggerRun() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Pipeline) runOnce(ctx context.Context) {
	if err := p.Run(ctx); err != nil {
		p.logger.Errorf("Pipeline run failed: %v", err)
	}
}

// Run executes one full cycle. A fetch or registry failure aborts the
// run before any store mutation.
func (p *Pipeline) Run(ctx context.Context) error {
	sensorIndices, err := p.store.ListSensorIndices(ctx)
	if err != nil {
		return fmt.Errorf("load sensor registry: %w", err)
	}
	if len(sensorIndices) == 0 {
		p.logger.Warnf("No sensors registered, skipping run")
		return nil
	}

	var (
		raw     []models.RawTelemetry
		runtime time.Time
	)
	err = utils.Retry(p.logger, p.cfg.FetchAttempts, p.cfg.FetchRetryWait, func() error {
		var fetchErr error
		raw, runtime, fetchErr = p.fetcher.Fetch(ctx, sensorIndices)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("fetch telemetry: %w", err)
	}

	clean, flagged := quality.Partition(raw, runtime)
	if len(flagged) > 0 {
		p.logger.Warnf("Flagged %d of %d sensors: %v", len(flagged), len(raw), flagged)
	}

	spikes := quality.ExtractSpikes(clean, p.cfg.SpikeThreshold)
	p.logger.Infof("Run at %s: %d raw, %d clean, %d spikes", runtime.Format(time.RFC3339), len(raw), len(clean), len(spikes))

	var recipients []int
	var messages []string

	for _, spike := range spikes {
		p.publish(models.EventSpike, runtime, spike)

		nearby, err := p.store.UsersNearbySensor(ctx, spike.SensorIndex, p.cfg.RadiusMeters)
		if err != nil {
			p.logger.Errorf("Nearby-user query failed for sensor %d: %v", spike.SensorIndex, err)
			continue
		}
		if len(nearby) == 0 {
			continue
		}

		newUsers, err := p.store.UsersEligibleForNewAlert(ctx, nearby)
		if err != nil {
			p.logger.Errorf("Gatekeeper query failed for sensor %d: %v", spike.SensorIndex, err)
			continue
		}
		tracked := subtract(nearby, newUsers)

		if len(newUsers) > 0 {
			alertIndex, err := p.store.CreateAlert(ctx, runtime, spike.PM25, []int{spike.SensorIndex})
			if err != nil {
				p.logger.Errorf("Alert creation failed for sensor %d: %v", spike.SensorIndex, err)
				continue
			}
			if err := p.store.AppendActiveAlert(ctx, newUsers, alertIndex); err != nil {
				p.logger.Errorf("Failed to attach alert %d: %v", alertIndex, err)
				continue
			}
			p.publish(models.EventAlertCreated, runtime, models.Alert{
				AlertIndex:    alertIndex,
				StartTime:     runtime,
				MaxReading:    spike.PM25,
				SensorIndices: []int{spike.SensorIndex},
			})
			p.logger.Infof("Alert %d created for sensor %d, %d users", alertIndex, spike.SensorIndex, len(newUsers))

			body := newAlertMessage(spike)
			for _, id := range newUsers {
				recipients = append(recipients, id)
				messages = append(messages, body)
			}
		}

		if len(tracked) > 0 {
			if err := p.store.ExtendActiveAlerts(ctx, tracked, spike.SensorIndex, spike.PM25); err != nil {
				p.logger.Errorf("Failed to extend active alerts for sensor %d: %v", spike.SensorIndex, err)
				continue
			}
			p.publish(models.EventAlertExtended, runtime, spike)
		}
	}

	reportable, err := p.store.UsersReportable(ctx)
	if err != nil {
		p.logger.Errorf("Reportable-user query failed: %v", err)
	}
	for _, id := range reportable {
		reportID := p.newReportID()
		duration, maxReading, err := p.store.InitializeReport(ctx, id, reportID, time.Now())
		if err != nil {
			p.logger.Errorf("Report initialization failed for user %d: %v", id, err)
			continue
		}
		p.publish(models.EventReport, runtime, map[string]interface{}{
			"report_id":        reportID,
			"record_id":        id,
			"duration_minutes": duration,
			"max_reading":      maxReading,
		})
		recipients = append(recipients, id)
		messages = append(messages, reportMessage(duration, maxReading))
	}

	if len(recipients) > 0 {
		if err := p.dispatcher.Dispatch(ctx, recipients, messages); err != nil {
			p.logger.Errorf("Dispatch completed with errors: %v", err)
		}
	}

	p.publish(models.EventRunCompleted, runtime, map[string]interface{}{
		"sensors":  len(raw),
		"clean":    len(clean),
		"flagged":  len(flagged),
		"spikes":   len(spikes),
		"messages": len(recipients),
	})
	return nil
}

func (p *Pipeline) publish(eventType string, ts time.Time, payload interface{}) {
	if p.events == nil {
		return
	}
	p.events.Publish(models.PipelineEvent{Type: eventType, Timestamp: ts, Payload: payload})
}

// subtract returns the elements of all that are not in remove, keeping
// order.
func subtract(all, remove []int) []int {
	drop := make(map[int]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	var rest []int
	for _, id := range all {
		if _, ok := drop[id]; !ok {
			rest = append(rest, id)
		}
	}
	return rest
}

// newAlertMessage is the first message a user receives when air quality
// spikes near them.
func newAlertMessage(spike models.SpikeEvent) string {
	return fmt.Sprintf(
		"Air quality alert: sensor %d near you is reading %.1f ug/m3 (PM2.5, 10-minute average). Consider limiting time outdoors. You will get a summary when readings return to normal.",
		spike.SensorIndex, spike.PM25,
	)
}

// reportMessage summarizes a finished alert episode.
func reportMessage(durationMinutes int, maxReading float64) string {
	return fmt.Sprintf(
		"Air quality update: the alert near you has ended. It lasted %d minutes with a peak reading of %.1f ug/m3.",
		durationMinutes, maxReading,
	)
}
