package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
	"gopkg.in/tomb.v2"

	"github.com/sentinelhq/sentinel/pkg/apiserver"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/database"
	"github.com/sentinelhq/sentinel/pkg/engine"
	"github.com/sentinelhq/sentinel/pkg/enrich"
	"github.com/sentinelhq/sentinel/pkg/logging"
	"github.com/sentinelhq/sentinel/pkg/outputs"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the service until ctx is cancelled or the API server dies.
func Serve(ctx context.Context, cConfig *csconfig.Config) error {
	store, err := database.NewStore(ctx, cConfig.DbConfig, log.WithField("module", "db"))
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}

	var flushScheduler gocron.Scheduler

	defer func() {
		if flushScheduler != nil {
			if err := flushScheduler.Shutdown(); err != nil {
				log.Warningf("while stopping flush scheduler: %s", err)
			}
		}

		if err := store.Close(); err != nil {
			log.Warningf("while closing database: %s", err)
		}
	}()

	flushScheduler, err = store.StartFlushScheduler(ctx, cConfig.DbConfig.Flush)
	if err != nil {
		return err
	}

	eng := engine.New(store, engine.OptionsFromConfig(cConfig.Honeypot), log.WithField("module", "engine"))

	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := eng.Shutdown(sctx); err != nil {
			log.Warningf("while shutting down engine: %s", err)
		}
	}()

	subscribers, err := buildSubscribers(cConfig, store)
	if err != nil {
		return err
	}

	for _, s := range subscribers {
		log.Infof("registered output %s", s.Name())
		eng.Subscribe(s)
	}

	metricsServer, err := servePrometheus(cConfig.Prometheus)
	if err != nil {
		return err
	}

	if metricsServer != nil {
		defer shutdownHTTP(metricsServer, "metrics")
	}

	var apiTomb tomb.Tomb

	if *cConfig.API.Enabled {
		apiServer, err := startAPI(&apiTomb, cConfig, eng)
		if err != nil {
			return err
		}

		defer func() {
			if err := apiServer.Shutdown(); err != nil {
				log.Warningf("while shutting down API: %s", err)
			}
		}()
	}

	if *cConfig.Honeypot.AutoStart {
		if err := eng.Start(ctx, cConfig.Honeypot.Ports, *cConfig.Honeypot.HighPortMode); err != nil {
			if !*cConfig.API.Enabled {
				return fmt.Errorf("starting listeners: %w", err)
			}

			// still useful: the API can restart the listeners
			log.Errorf("starting listeners: %s", err)
		}
	}

	select {
	case <-ctx.Done():
		log.Info("received termination signal")
	case <-apiTomb.Dying():
		if err := apiTomb.Err(); err != nil && !errors.Is(err, tomb.ErrStillAlive) {
			return err
		}
	}

	return nil
}

func startAPI(apiTomb *tomb.Tomb, cConfig *csconfig.Config, eng *engine.Engine) (*apiserver.APIServer, error) {
	accessLogger := logging.CreateAccessLogger(cConfig.Common, cConfig.API.Level)

	apiServer, err := apiserver.NewServer(cConfig.API, eng, *cConfig.Honeypot.HighPortMode, accessLogger)
	if err != nil {
		return nil, fmt.Errorf("unable to create API server: %w", err)
	}

	apiReady := make(chan bool, 1)

	apiTomb.Go(func() error {
		return apiServer.Run(apiReady)
	})

	if !<-apiReady {
		return nil, apiTomb.Wait()
	}

	return apiServer, nil
}

func buildSubscribers(cConfig *csconfig.Config, store *database.Store) ([]engine.Subscriber, error) {
	var ret []engine.Subscriber

	if ec := cConfig.Enrichment; *ec.Enabled {
		enricher, err := enrich.NewEnricher(ec, store, log.WithField("module", "enrich"))
		if err != nil {
			log.Warningf("GeoIP enrichment disabled: %s", err)
		} else {
			ret = append(ret, enricher)
		}
	}

	oc := cConfig.Outputs

	if *oc.LogFile.Enabled {
		fileOutput, err := outputs.NewFileOutput(oc.LogFile)
		if err != nil {
			closeSubscribers(ret)
			return nil, fmt.Errorf("attack log: %w", err)
		}

		ret = append(ret, fileOutput)
	}

	if oc.Kafka != nil {
		ret = append(ret, outputs.NewKafkaOutput(oc.Kafka, log.WithField("output", "kafka")))
	}

	if oc.Slack != nil {
		ret = append(ret, outputs.NewSlackOutput(oc.Slack))
	}

	return ret, nil
}

// closeSubscribers releases the subscribers built so far, when they hold resources.
func closeSubscribers(subs []engine.Subscriber) {
	for _, s := range subs {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}

		if err := c.Close(); err != nil {
			log.Warningf("while closing %s: %s", s.Name(), err)
		}
	}
}
