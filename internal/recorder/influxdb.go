package recorder

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"PowerSim/internal/powersim"
)

const (
	sampleMeasurement     = "power_sample"
	transitionMeasurement = "power_transition"
	writeTimeout          = 10 * time.Second
)

type InfluxDB struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
	host     string

	buffer *sampleBuffer
}

// NewInfluxDB connects to the server and makes sure the organization and
// bucket exist before returning.
func NewInfluxDB(cfg DBConfig, host string) (*InfluxDB, error) {
	client := influxdb2.NewClient(cfg.InfluxDB.URL, cfg.InfluxDB.Token)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if ok, err := client.Ping(ctx); err != nil || !ok {
		client.Close()
		return nil, fmt.Errorf("failed to ping InfluxDB: %v", err)
	}

	if err := ensureBucket(ctx, client, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket); err != nil {
		client.Close()
		return nil, err
	}

	return newInfluxDB(client, cfg, host), nil
}

func newInfluxDB(client influxdb2.Client, cfg DBConfig, host string) *InfluxDB {
	db := &InfluxDB{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxDB.Org, cfg.InfluxDB.Bucket),
		org:      cfg.InfluxDB.Org,
		bucket:   cfg.InfluxDB.Bucket,
		host:     host,
	}
	db.buffer = newSampleBuffer(cfg.BatchSize, cfg.FlushInterval, db.writeSamples)
	return db
}

func (db *InfluxDB) ObserveSample(s powersim.Sample) error {
	return db.buffer.add(s)
}

func (db *InfluxDB) writeSamples(samples []powersim.Sample) error {
	log.Debugf("Batch saving power samples to InfluxDB, count: %d", len(samples))

	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		points = append(points, influxdb2.NewPoint(
			sampleMeasurement,
			map[string]string{
				"host":  db.host,
				"state": string(s.State),
			},
			map[string]interface{}{
				"wattage_w":     s.Wattage,
				"wake_progress": s.WakeProgress,
			},
			s.Time,
		))
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := db.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write batch data: %w", err)
	}
	return nil
}

func (db *InfluxDB) ObserveTransition(t powersim.Transition) error {
	p := influxdb2.NewPoint(
		transitionMeasurement,
		map[string]string{
			"host":       db.host,
			"from_state": string(t.From),
			"to_state":   string(t.To),
		},
		map[string]interface{}{
			"wattage_w": t.Wattage,
			"reason":    t.Reason,
		},
		t.Time,
	)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := db.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("failed to write state transition: %w", err)
	}
	return nil
}

func (db *InfluxDB) Close() error {
	err := db.buffer.close()
	db.client.Close()
	return err
}

func ensureBucket(ctx context.Context, client influxdb2.Client, orgName, bucketName string) error {
	orgAPI := client.OrganizationsAPI()
	org, _ := orgAPI.FindOrganizationByName(ctx, orgName)
	if org == nil {
		log.Infof("Creating organization: %s", orgName)
		var err error
		org, err = orgAPI.CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
	}

	bucketsAPI := client.BucketsAPI()
	if bucket, _ := bucketsAPI.FindBucketByName(ctx, bucketName); bucket != nil {
		log.Infof("Bucket already exists: %s", bucketName)
		return nil
	}

	log.Infof("Creating bucket: %s", bucketName)
	if _, err := bucketsAPI.CreateBucketWithName(ctx, org, bucketName); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}
