package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/trajectory"
)

const DefaultSubjectPrefix = "ais.summary"

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	logger  *zap.Logger
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logger *zap.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("aistraj"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Debug("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	if strings.TrimSpace(subjectPrefix) == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix, logger: logger, metrics: m}, nil
}

// Close flushes pending summaries and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warn("nats drain", zap.Error(err))
		}
		p.nc.Close()
	}
}

type SummaryMessage struct {
	Category          string    `json:"category"`
	GeneratedAt       time.Time `json:"generatedAt"`
	UniqueOriginal    int       `json:"uniqueMmsiOriginal"`
	UniqueFiltered    int       `json:"uniqueMmsiFiltered"`
	ShortTrajectories int       `json:"shortTrajectories"`
	LongTrajectories  int       `json:"longTrajectories"`
	ShortBelowKm      float64   `json:"shortBelowKm"`
	LongAboveKm       float64   `json:"longAboveKm"`
}

func NewSummaryMessage(c ais.Category, s trajectory.Summary, at time.Time) SummaryMessage {
	return SummaryMessage{
		Category:          c.String(),
		GeneratedAt:       at.UTC(),
		UniqueOriginal:    s.Vessels.Original,
		UniqueFiltered:    s.Vessels.Filtered,
		ShortTrajectories: s.Lengths.Short,
		LongTrajectories:  s.Lengths.Long,
		ShortBelowKm:      s.Thresholds.ShortKm,
		LongAboveKm:       s.Thresholds.LongKm,
	}
}

// Subject returns the subject a category summary is published on.
func Subject(prefix string, c ais.Category) string {
	return prefix + "." + subjectToken(c.String())
}

func (p *NATSPublisher) PublishSummary(c ais.Category, s trajectory.Summary) error {
	b, err := json.Marshal(NewSummaryMessage(c, s, time.Now()))
	if err != nil {
		return err
	}
	subject := Subject(p.prefix, c)
	p.logger.Debug("nats publish", zap.String("subject", subject))
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
