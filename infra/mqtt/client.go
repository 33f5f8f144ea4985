package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// FeedTopic carries incoming AVL reports.
	FeedTopic string `json:"feed_topic"`
	// SnapshotTopicPrefix is the topic prefix snapshots are published
	// under; the vehicle id is appended.
	SnapshotTopicPrefix string          `json:"snapshot_topic_prefix"`
	UseTLS              bool            `json:"use_tls"`
	ClientCert          string          `json:"client_cert"`
	ClientKey           string          `json:"client_key"`
	CABundle            string          `json:"ca_bundle"`
	QoS                 map[string]byte `json:"qos"`
	LWTTopic            string          `json:"lwt_topic"`
	LWTPayload          string          `json:"lwt_payload"`
	LWTQoS              byte            `json:"lwt_qos"`
	LWTRetain           bool            `json:"lwt_retain"`
	MaxRetries          int             `json:"max_retries"`
	BackoffMS           int             `json:"backoff_ms"`
	TLSConfig           *tls.Config     `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "avltracker-" + uuid.NewString()[:8]
	}
	if c.FeedTopic == "" {
		c.FeedTopic = "fleet/avl"
	}
	if c.SnapshotTopicPrefix == "" {
		c.SnapshotTopicPrefix = "fleet/vehicle"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// ReportHandler consumes decoded AVL reports from the feed topic.
type ReportHandler func(model.AvlReport)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoClient connects the tracker to the MQTT broker: it subscribes to the
// AVL feed and publishes encoded snapshot payloads.
type PahoClient struct {
	cli        pahoClient
	cfg        Config
	handler    ReportHandler
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewPahoClient connects to the MQTT broker and subscribes to the AVL feed
// topic, passing each decoded report to handler. A nil handler disables the
// subscription, for publish-only use.
func NewPahoClient(cfg Config, handler ReportHandler) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:        cfg,
		handler:    handler,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.handler == nil {
			return
		}
		qos := byte(0)
		if q, ok := cfg.QoS["feed"]; ok {
			qos = q
		}
		if token := c.Subscribe(cfg.FeedTopic, qos, pc.onReport); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the
// config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// avlMessage is the JSON shape of a feed message. Heading is a pointer so
// that feeds without heading information can omit it.
type avlMessage struct {
	VehicleID       string   `json:"vehicle_id"`
	Time            int64    `json:"time"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	Heading         *float32 `json:"heading"`
	Speed           float32  `json:"speed"`
	AssignmentID    string   `json:"assignment_id"`
	SchedBasedPreds bool     `json:"sched_based_preds"`
}

func (p *PahoClient) onReport(_ paho.Client, msg paho.Message) {
	var m avlMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode avl report: %v", err)
		return
	}
	report := model.AvlReport{
		VehicleID:       m.VehicleID,
		Time:            time.UnixMilli(m.Time),
		Location:        model.Location{Lat: m.Lat, Lon: m.Lon},
		Speed:           m.Speed,
		AssignmentID:    m.AssignmentID,
		SchedBasedPreds: m.SchedBasedPreds,
	}
	if m.Heading != nil {
		report.Heading = model.HeadingOf(*m.Heading)
	}
	p.handler(report)
}

// PublishReport publishes an AVL report to the feed topic, in the same JSON
// shape the subscription decodes. Used by feed simulation and replay tooling.
func (p *PahoClient) PublishReport(report model.AvlReport) error {
	m := avlMessage{
		VehicleID:       report.VehicleID,
		Time:            report.Time.UnixMilli(),
		Lat:             report.Location.Lat,
		Lon:             report.Location.Lon,
		Speed:           report.Speed,
		AssignmentID:    report.AssignmentID,
		SchedBasedPreds: report.SchedBasedPreds,
	}
	if report.Heading.Valid {
		h := report.Heading.Degrees
		m.Heading = &h
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode avl report: %w", err)
	}

	qos := byte(0)
	if q, ok := p.cfg.QoS["feed"]; ok {
		qos = q
	}
	token := p.cli.Publish(p.cfg.FeedTopic, qos, false, payload)
	token.Wait()
	return token.Error()
}

// PublishSnapshot publishes an encoded snapshot payload to the vehicle's
// topic, retrying with exponential backoff on failure.
func (p *PahoClient) PublishSnapshot(vehicleID string, payload []byte) error {
	topic := fmt.Sprintf("%s/%s/snapshot", p.cfg.SnapshotTopicPrefix, vehicleID)
	qos := byte(0)
	if q, ok := p.cfg.QoS["snapshot"]; ok {
		qos = q
	}

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	p.cli.Disconnect(250)
}
