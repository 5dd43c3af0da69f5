// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/master"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const mqttConnectTimeout = 10 * time.Second

// statePayload is the JSON document published on <topic>/state.
type statePayload struct {
	Timestamp time.Time                          `json:"timestamp"`
	Cycles    uint64                             `json:"cycles"`
	Missed    uint64                             `json:"missed"`
	Motors    [axis.MaxAxes]axis.MotorTelemetry `json:"motors"`
}

// newStatePayload snapshots a frame for publishing. Non-finite values are
// not representable in JSON and are reported as zero.
func newStatePayload(st axis.StateFrame, stats master.Statistics, now time.Time) statePayload {
	p := statePayload{
		Timestamp: now,
		Cycles:    stats.Cycles,
		Missed:    stats.Missed,
		Motors:    st.Motors,
	}
	for i := range p.Motors {
		mt := &p.Motors[i]
		for _, f := range []*float32{&mt.Q, &mt.DQ, &mt.DDQ, &mt.TauEst, &mt.QRaw, &mt.DQRaw, &mt.DDQRaw} {
			if math.IsNaN(float64(*f)) || math.IsInf(float64(*f), 0) {
				*f = 0
			}
		}
	}
	return p
}

type statePublisher struct {
	client mqtt.Client
	topic  string
	logger *log.Logger
}

func newStatePublisher(broker, prefix string, logger *log.Logger) (*statePublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("servo-master-" + uuid.NewString())
	opts.OnConnect = func(mqtt.Client) {
		logger.Printf("connected to MQTT broker %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Printf("MQTT connection lost: %v", err)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	return &statePublisher{client: client, topic: prefix + "/state", logger: logger}, nil
}

// Run publishes the master state at rateHz until ctx is done.
func (p *statePublisher) Run(ctx context.Context, m *master.Master, rateHz float64) {
	if rateHz <= 0 {
		rateHz = 1
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := p.publish(newStatePayload(m.State(), m.Statistics(), now)); err != nil {
				p.logger.Printf("MQTT publish: %v", err)
			}
		}
	}
}

func (p *statePublisher) publish(payload statePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, false, data)
	if !token.WaitTimeout(time.Second) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

func (p *statePublisher) Close() {
	p.client.Disconnect(250)
}
