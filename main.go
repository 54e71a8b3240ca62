package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/mute-agent/config"
	"github.com/flokli/mute-agent/controller"
	"github.com/flokli/mute-agent/hal"
	"github.com/flokli/mute-agent/hal/backends"
	"github.com/flokli/mute-agent/httpapi"
	"github.com/flokli/mute-agent/mqtt"
	"github.com/flokli/mute-agent/mute"
	"github.com/flokli/mute-agent/osc"
	"github.com/flokli/mute-agent/server"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("Unable to load config")
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	// get machine id
	machineID, err := GetMachineID()
	if err != nil {
		log.WithError(err).Error("Unable to get machine id")
		os.Exit(1)
	}

	backend, err := backends.Open(cfg.Backend)
	if err != nil {
		log.WithError(err).Error("Unable to open audio backend")
		os.Exit(1)
	}
	if c, ok := backend.(hal.Closer); ok {
		defer c.Close()
	}

	core := mute.New(backend, mute.WithLanguage(cfg.LanguageTag()))
	ctrl := controller.New(core, cfg.Preferences)
	s := server.New(machineID, cfg.MQTT.TopicPrefix, ctrl, cfg.Poll)

	var wg sync.WaitGroup
	if cfg.OSC.Enabled {
		surface, err := osc.New(ctrl, s.Changed)
		if err != nil {
			log.WithError(err).Error("Unable to set up OSC")
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := surface.ListenAndServe(ctx, cfg.OSC.Listen); err != nil {
				log.WithError(err).Error("OSC surface failed")
			}
		}()
	}
	if cfg.HTTP.Enabled {
		api := httpapi.New(ctrl, s.Changed)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.ListenAndServe(ctx, cfg.HTTP.Listen); err != nil {
				log.WithError(err).Error("HTTP API failed")
			}
		}()
	}

	var mqttOpts *mqtt.Options
	if cfg.MQTT.Enabled {
		mqttOpts = &mqtt.Options{
			ServerURL: cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
		}
	}

	if err := s.Run(ctx, mqttOpts); err != nil {
		log.WithError(err).Error("Server failed")
		stop()
	}

	wg.Wait()
	s.Close()
}

func setupLogging(c config.LoggingConfig) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
