package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/control"
	"github.com/nergy-se/roomcontroller/pkg/flowsource"
	"github.com/nergy-se/roomcontroller/pkg/ingest"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/mqtt"
	"github.com/nergy-se/roomcontroller/pkg/state"
	"github.com/nergy-se/roomcontroller/pkg/version"
	"github.com/nergy-se/roomcontroller/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

type App struct {
	wg        *sync.WaitGroup
	cliConfig *config.CliConfig
	config    *config.Config

	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	transport mqtt.Transport
	flow      flowsource.Source
	store     *state.Store
	queue     *ingest.Queue
	ingestor  *ingest.Ingestor
	control   *control.ControlLoop
	external  *control.ExternalSensorPublisher
	trv       *control.TRVConfigurator
	web       *web.Server
}

func New(cliConfig *config.CliConfig) *App {
	return &App{
		wg:        &sync.WaitGroup{},
		cliConfig: cliConfig,
	}
}

// Start loads the room config, connects the transport and starts the ingest,
// control and external temperature tasks. They run until ctx is done.
func (a *App) Start(ctx context.Context) error {
	logrus.WithField("version", version.Version).Info("starting roomcontroller")
	cfg, err := config.Load(a.cliConfig.ConfigFile)
	if err != nil {
		return err
	}
	a.config = cfg

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.registry)

	a.flow, err = flowsource.New(cfg.FlowSource)
	if err != nil {
		return err
	}

	a.store = state.New(cfg)
	a.queue = ingest.NewQueue(ingest.DefaultQueueSize, a.metrics)
	a.ingestor = ingest.New(a.store, a.metrics)

	a.transport, err = a.connect()
	if err != nil {
		return err
	}

	a.control = control.NewControlLoop(cfg, a.store, a.transport, a.flow, a.metrics)
	a.external = control.NewExternalSensorPublisher(cfg, a.store, a.transport, a.metrics)
	a.trv = control.NewTRVConfigurator(cfg, a.transport, a.metrics)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.ingestor.Run(ctx, a.queue)
	}()

	err = a.subscribe()
	if err != nil {
		return err
	}
	a.transport.OnConnect(a.configureTRVs)

	a.wg.Add(2)
	go a.controllerLoop(ctx, "control", cfg.Control.Period, a.DoControlPass)
	go a.controllerLoop(ctx, "external temperature", cfg.ExternalSensor.Period, a.DoExternalPass)

	if a.cliConfig.HTTPAddr != "" {
		a.startWeb(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		logrus.Info("shutting down")
		if err := a.transport.Close(); err != nil {
			logrus.Errorf("error closing mqtt: %s", err)
		}
		if err := a.flow.Close(); err != nil {
			logrus.Errorf("error closing flow source: %s", err)
		}
	}()
	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
}

func (a *App) connect() (mqtt.Transport, error) {
	if a.cliConfig.EmbeddedBroker {
		broker, err := mqtt.StartBroker(a.cliConfig.EmbeddedBrokerAddr)
		if err != nil {
			return nil, err
		}
		a.metrics.Connected(true)
		return broker, nil
	}
	return mqtt.Connect(mqtt.Options{
		Host:     a.config.MQTTHost,
		Port:     a.config.MQTTPort,
		Username: a.cliConfig.MQTTUsername,
		Password: a.cliConfig.MQTTPassword,
	}, a.metrics.Connected)
}

// subscribe to the state topic of every configured device.
func (a *App) subscribe() error {
	topics := mqtt.Topics{Namespace: a.config.Namespace}
	ids := append(a.config.SensorIDs(), a.config.ThermostatIDs()...)
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		err := a.transport.Subscribe(topics.Device(id), func(topic string, payload []byte) {
			a.queue.Push(topic, payload)
		})
		if err != nil {
			return fmt.Errorf("error subscribing to %s: %w", id, err)
		}
	}
	logrus.Infof("subscribed to %d devices", len(seen))
	return nil
}

func (a *App) configureTRVs() {
	err := a.trv.Configure()
	if err != nil {
		logrus.Errorf("error configuring trvs: %s", err)
	}
}

func (a *App) controllerLoop(ctx context.Context, name string, period time.Duration, fn func()) {
	defer a.wg.Done()
	delay := nextDelay(time.Now(), period)
	timer := time.NewTimer(delay)
	logrus.Debugf("scheduling first %s run in %s", name, delay)
	for {
		select {
		case <-timer.C:
			fn()
			timer.Reset(nextDelay(time.Now(), period))
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// DoControlPass runs one control pass right away.
func (a *App) DoControlPass() {
	a.control.RunPass()
}

// DoExternalPass publishes the external temperatures right away.
func (a *App) DoExternalPass() {
	a.external.RunPass()
}

func (a *App) Store() *state.Store {
	return a.store
}

func (a *App) startWeb(ctx context.Context) {
	a.web = web.New(a.cliConfig.HTTPAddr, a.store, a.control, a.transport, a.registry)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		logrus.Infof("http listening on %s", a.cliConfig.HTTPAddr)
		err := a.web.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server: %s", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.web.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Errorf("http shutdown: %s", err)
		}
	}()
}
